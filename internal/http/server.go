// Package http assembles the gin engine and its shared middleware.
package http

import (
	"github.com/avnova/sqyros/internal/assist"
	"github.com/avnova/sqyros/internal/http/api/functions"
	"github.com/avnova/sqyros/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewEngine builds the HTTP engine with every route registered.
func NewEngine(db *gorm.DB, svc *assist.Service, verifier *security.Verifier) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), RequestLogMiddleware(), CORSMiddleware())
	functions.RegisterHealthRoutes(r, db)
	functions.RegisterFunctionRoutes(r, svc, verifier)
	return r
}
