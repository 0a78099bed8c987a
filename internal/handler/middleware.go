package handler

import (
	"fmt"
	"log"
	"time"

	"boostpanel/pkg/idgen"

	"github.com/gin-gonic/gin"
)

const headerRequestID = "X-Request-ID"

// LoggerMiddleware 日志中间件
// 每个请求带一个请求ID（客户端没传就生成一个），写进日志并回显到响应头，
// 排查问题时可以串起客户端和服务端的记录
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = fmt.Sprintf("%X", idgen.NextID())
		}
		c.Header(headerRequestID, requestID)

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			requestID,
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件，方法列表只放路由实际暴露的 GET/POST
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
