package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lunora/arcana/config"
	"github.com/lunora/arcana/middleware"
)

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func isAdmin(ctx *gin.Context) bool {
	unameVal, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return false
	}
	uname, ok := unameVal.(string)
	if !ok {
		return false
	}
	for _, admin := range config.Get().AdminUsernames {
		if uname == admin {
			return true
		}
	}
	return false
}
