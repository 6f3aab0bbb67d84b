package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workbook/pkg/civil"
)

var errInvalidSnowflakeID = errors.New("invalid_snowflake_id")

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return nil, errInvalidSnowflakeID
	}
	return &parsed, nil
}

func pathSnowflakeID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param(name))
	if err != nil || id == nil {
		return 0, newValidationError(name, "invalid_id", "invalid id")
	}
	return *id, nil
}

// querySnowflakeIDs accepts repeated and comma separated values.
func querySnowflakeIDs(c *gin.Context, name string) ([]snowflake.ID, error) {
	var out []snowflake.ID
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			id, err := parseOptionalSnowflakeID(part)
			if err != nil {
				return nil, newValidationError(name, "invalid_id", "invalid id")
			}
			if id != nil {
				out = append(out, *id)
			}
		}
	}
	return out, nil
}

func queryDate(c *gin.Context, name string) civil.Date {
	return civil.Date(strings.TrimSpace(c.Query(name)))
}
