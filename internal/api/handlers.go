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

package api

import (
	"net/http"
	"strings"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/JulioMCruz/ZodiacCards/fortune/verify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────
//  Payment and linking
// ──────────────────────────────────────────────

func (s *Server) verifyPayment(c *gin.Context) {
	var req fortune.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.TxHash == (common.Hash{}) || req.UserAddress == (common.Address{}) {
		badRequest(c, "txHash and userAddress are required")
		return
	}
	proof, err := s.service.VerifyPayment(c.Request.Context(), req.TxHash, req.UserAddress)
	if err != nil {
		abort(c, err)
		return
	}
	token, err := s.tokens.Issue(proof)
	if err != nil {
		abort(c, err)
		return
	}
	log.Info("Payment verified", "paymentId", proof.PaymentID, "user", proof.User, "tx", proof.TxHash)
	c.JSON(http.StatusOK, fortune.VerifyPaymentResponse{Token: token, Payment: proof})
}

func (s *Server) storeGeneration(c *gin.Context) {
	paymentID, user, err := s.tokens.Parse(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, fortune.ErrorResponse{Error: err.Error(), Kind: fault.Unauthorized})
		return
	}
	var req fortune.StoreGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.PaymentID == nil || req.MetadataURI == "" {
		badRequest(c, "paymentId and metadataURI are required")
		return
	}
	if req.PaymentID.Cmp(paymentID) != 0 {
		abort(c, fault.New(fault.Unauthorized, "store generation", "token was issued for payment "+paymentID.String()))
		return
	}
	res, err := s.service.Link(c.Request.Context(), fortune.LinkRequest{
		PaymentID:   paymentID,
		MetadataURI: req.MetadataURI,
		Requester:   user,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ──────────────────────────────────────────────
//  Generation and metadata
// ──────────────────────────────────────────────

type fortuneResponse struct {
	Fortune  string `json:"fortune"`
	Fallback bool   `json:"fallback"`
}

func (s *Server) generateFortune(c *gin.Context) {
	var req generate.FortuneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sign, ok := generate.Lookup(req.ZodiacType, req.Sign)
	if !ok {
		badRequest(c, "unknown sign "+req.Sign+" for zodiac type "+string(req.ZodiacType))
		return
	}
	req.Sign = sign.Name
	text, fallback := s.service.Fortune(c.Request.Context(), req)
	c.JSON(http.StatusOK, fortuneResponse{Fortune: text, Fallback: fallback})
}

type metadataRequest struct {
	TokenURI string `json:"tokenURI"`
}

func (s *Server) fetchMetadata(c *gin.Context) {
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TokenURI == "" {
		badRequest(c, "tokenURI is required")
		return
	}
	doc, err := s.service.FetchMetadata(c.Request.Context(), req.TokenURI)
	if err != nil {
		abort(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

// ──────────────────────────────────────────────
//  Identity verification
// ──────────────────────────────────────────────

type checkRequest struct {
	UserID string `json:"userId"`
}

type callbackRequest struct {
	UserID      string `json:"userId"`
	Verified    bool   `json:"verified"`
	DateOfBirth string `json:"date_of_birth"`
}

func (s *Server) verifyCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := s.checker.Check(req.UserID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) verifyCallback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	err := s.checker.Record(req.UserID, verify.Result{Verified: req.Verified, DateOfBirth: req.DateOfBirth})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ──────────────────────────────────────────────
//  Collection
// ──────────────────────────────────────────────

type collectionResponse struct {
	Owner   common.Address  `json:"owner"`
	Entries []fortune.Entry `json:"entries"`
}

func (s *Server) collection(c *gin.Context) {
	owner, err := fortune.ParseAddress(strings.TrimSpace(c.Param("address")))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	entries, err := s.service.Collection(c.Request.Context(), owner)
	if err != nil {
		abort(c, err)
		return
	}
	if entries == nil {
		entries = []fortune.Entry{}
	}
	c.JSON(http.StatusOK, collectionResponse{Owner: owner, Entries: entries})
}
