package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/middleware"
	"github.com/usethreadkit/threadkit/internal/models"
)

// EthereumNonce handles GET /v1/auth/ethereum/nonce.
func (s *Server) EthereumNonce(c *fiber.Ctx) error {
	return s.web3Nonce(c, "ethereum")
}

// EthereumVerify handles POST /v1/auth/ethereum/verify.
func (s *Server) EthereumVerify(c *fiber.Ctx) error {
	return s.web3Verify(c, "ethereum")
}

// SolanaNonce handles GET /v1/auth/solana/nonce.
func (s *Server) SolanaNonce(c *fiber.Ctx) error {
	return s.web3Nonce(c, "solana")
}

// SolanaVerify handles POST /v1/auth/solana/verify.
func (s *Server) SolanaVerify(c *fiber.Ctx) error {
	return s.web3Verify(c, "solana")
}

func (s *Server) web3Nonce(c *fiber.Ctx, chain string) error {
	address := c.Query("address")
	if address == "" {
		return apperr.Respond(c, apperr.BadRequest("address is required"))
	}
	nonce, err := s.web3.IssueNonce(c.Context(), chain, address)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"nonce": nonce})
}

func (s *Server) web3Verify(c *fiber.Ctx, chain string) error {
	var req struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}
	if err := c.BodyParser(&req); err != nil || req.Address == "" || req.Signature == "" {
		return apperr.Respond(c, apperr.BadRequest("address and signature are required"))
	}
	if err := s.web3.VerifySignature(c.Context(), chain, req.Address, req.Signature); err != nil {
		return apperr.Respond(c, err)
	}

	site := middleware.Site(c)
	userID, found, err := s.keeper.LookupByWallet(c.Context(), chain, req.Address)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if !found {
		user := &models.User{ID: models.NewUserID(), Name: req.Address}
		if err := s.keeper.CreateUser(c.Context(), user); err != nil {
			return apperr.Respond(c, err)
		}
		if err := s.keeper.BindWallet(c.Context(), chain, req.Address, user.ID); err != nil {
			return apperr.Respond(c, err)
		}
		userID = user.ID
	}

	return s.issueSession(c, site.ID, userID)
}
