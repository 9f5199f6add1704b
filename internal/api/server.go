// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package api serves the fortune backend over HTTP and JSON-RPC.
package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/verify"
	"github.com/JulioMCruz/ZodiacCards/internal/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gin-gonic/gin"
)

// ErrNoSecret is returned when the server is created without a token secret.
var ErrNoSecret = errors.New("api: jwt secret is required")

// Server routes HTTP requests to the fortune service.
type Server struct {
	service *fortune.Service
	checker *verify.Checker
	tokens  *Tokens
	rpc     *rpc.Server
	engine  *gin.Engine

	callbackSecret []byte
}

// Option configures a Server.
type Option func(*Server)

// WithCallbackSecret sets the bearer secret the identity-verification
// service presents on callbacks. It defaults to the token secret.
func WithCallbackSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.callbackSecret = []byte(secret)
		}
	}
}

// New creates the server and registers the "fortune" JSON-RPC namespace.
func New(service *fortune.Service, checker *verify.Checker, secret string, tokenTTL time.Duration, opts ...Option) (*Server, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("fortune", fortune.NewAPI(service)); err != nil {
		return nil, err
	}
	s := &Server{
		service: service,
		checker: checker,
		tokens:  NewTokens(secret, tokenTTL),
		rpc:     rpcServer,

		callbackSecret: []byte(secret),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog)

	r.GET("/liveness", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/rpc", gin.WrapH(s.rpc))

	api := r.Group("/api")
	api.POST("/payment/verify", s.verifyPayment)
	api.POST("/store-generation", s.storeGeneration)
	api.POST("/generate-fortune", s.generateFortune)
	api.POST("/fetch-nft-metadata", s.fetchMetadata)
	api.POST("/verify-self/check", s.verifyCheck)
	api.POST("/verify-self/callback", s.requireCallbackSecret, s.verifyCallback)
	api.GET("/collection/:address", s.collection)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close stops the JSON-RPC server.
func (s *Server) Close() {
	s.rpc.Stop()
}

func requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	log.Debug("Served request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status(), "elapsed", time.Since(start))
}

// requireCallbackSecret rejects requests whose bearer token is not the
// callback secret.
func (s *Server) requireCallbackSecret(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(raw), s.callbackSecret) != 1 {
		log.Warn("Rejected verification callback", "remote", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, fortune.ErrorResponse{Error: "invalid callback credentials", Kind: fault.Unauthorized})
		return
	}
	c.Next()
}

var kindStatus = map[fault.Kind]int{
	fault.InvalidInput:        http.StatusBadRequest,
	fault.Unauthorized:        http.StatusForbidden,
	fault.NotFound:            http.StatusNotFound,
	fault.AlreadyMinted:       http.StatusConflict,
	fault.InsufficientFunds:   http.StatusPaymentRequired,
	fault.ContractReverted:    http.StatusUnprocessableEntity,
	fault.TransientRPC:        http.StatusServiceUnavailable,
	fault.ServiceUnavailable:  http.StatusServiceUnavailable,
	fault.StorageUploadFailed: http.StatusBadGateway,
}

// abort writes err as an ErrorResponse with a status derived from its kind.
func abort(c *gin.Context, err error) {
	kind := fault.KindOf(err)
	status, ok := kindStatus[kind]
	switch {
	case errors.Is(err, fortune.ErrNotConfigured):
		status = http.StatusNotImplemented
	case !ok:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Warn("Request failed", "path", c.FullPath(), "kind", kind, "err", err)
	}
	c.AbortWithStatusJSON(status, fortune.ErrorResponse{Error: fault.Message(err), Kind: kind})
}

func badRequest(c *gin.Context, reason string) {
	abort(c, fault.New(fault.InvalidInput, c.FullPath(), reason))
}
