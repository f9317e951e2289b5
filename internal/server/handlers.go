package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"crashgame/internal/game"
)

const wsActionTimeout = 5 * time.Second

// statusFor maps game errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidPhase),
		errors.Is(err, game.ErrDuplicateBet),
		errors.Is(err, game.ErrNoActiveBet):
		return fiber.StatusConflict
	case errors.Is(err, game.ErrInsufficientBalance):
		return fiber.StatusPaymentRequired
	case errors.Is(err, game.ErrInvalidAmount):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	resp := fiber.Map{
		"round": s.gameManager.Snapshot(),
	}
	if bet, ok := s.gameManager.CurrentBet(); ok {
		resp["bet"] = bet
	}
	return c.JSON(resp)
}

func (s *FiberServer) getHistoryHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", game.HISTORY_LIMIT)
	if limit <= 0 || limit > game.HISTORY_LIMIT {
		limit = game.HISTORY_LIMIT
	}
	return c.JSON(fiber.Map{
		"history": s.gameManager.History(limit),
	})
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	resp, err := s.placeBet(c.UserContext(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	if req.BetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Bet ID is required",
		})
	}

	resp, err := s.cashOut(c.UserContext(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) placeBet(ctx context.Context, req game.BetRequest) (game.BetResponse, error) {
	bet, balance, err := s.gameManager.PlaceBet(ctx, req.UserID, req.Amount)
	if err != nil {
		return game.BetResponse{
			Success: false,
			Message: err.Error(),
			Balance: balance,
		}, err
	}
	return game.BetResponse{
		Success: true,
		Message: "Bet placed successfully",
		Bet:     &bet,
		Balance: balance,
	}, nil
}

func (s *FiberServer) cashOut(ctx context.Context, req game.CashoutRequest) (game.CashoutResponse, error) {
	settlement, err := s.gameManager.CashOut(ctx, req.UserID, req.BetID)
	if err != nil {
		return game.CashoutResponse{
			Success: false,
			Message: err.Error(),
		}, err
	}
	return game.CashoutResponse{
		Success:    true,
		Message:    "Cashed out successfully",
		Settlement: &settlement,
	}, nil
}

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")

	balance, err := s.accounts.Balance(c.UserContext(), userID)
	if err != nil {
		s.log.Warn("read balance", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

// setUserBalanceHandler sets a user's balance (for testing/admin)
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")

	setter, ok := s.accounts.(game.BalanceSetter)
	if !ok {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Account backend does not support setting balances",
		})
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if body.Balance < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Balance must not be negative",
		})
	}

	if err := setter.SetBalance(c.UserContext(), userID, body.Balance); err != nil {
		s.log.Warn("set balance", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
		"message": "Balance updated successfully",
	})
}

// requireAdmin rejects requests without the configured admin token. An
// empty token disables admin routes entirely.
func (s *FiberServer) requireAdmin(c *fiber.Ctx) error {
	want := s.cfg.AdminToken
	if want == "" {
		return fiber.NewError(fiber.StatusForbidden, "admin routes are disabled")
	}
	got := c.Get(adminTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid admin token")
	}
	return c.Next()
}

func (s *FiberServer) forceCrashHandler(c *fiber.Ctx) error {
	crashed := s.gameManager.ForceCrash()
	s.log.Info("admin crash requested", zap.Bool("crashed", crashed), zap.String("ip", c.IP()))
	return c.JSON(fiber.Map{
		"crashed": crashed,
		"round":   s.gameManager.Snapshot(),
	})
}

func (s *FiberServer) verifyFairnessHandler(c *fiber.Ctx) error {
	serverSeed := c.Query("server_seed")
	clientSeed := c.Query("client_seed")
	if serverSeed == "" || clientSeed == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "server_seed and client_seed are required",
		})
	}
	nonce := c.QueryInt("nonce", 0)
	claimed := c.QueryFloat("multiplier", 0)

	return c.JSON(fiber.Map{
		"commitment": game.HashCommitment(serverSeed),
		"multiplier": game.HashAndMapToMultiplier(serverSeed, clientSeed, nonce),
		"valid":      claimed > 0 && game.VerifyRound(serverSeed, clientSeed, nonce, claimed),
	})
}

type clientMessage struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	BetID  string  `json:"bet_id"`
}

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")
	log := s.log.With(zap.String("user_id", userID))

	log.Debug("websocket connected")

	client := s.gameHub.RegisterClient(conn, userID)
	defer s.gameHub.UnregisterClient(client)

	client.SendJSON(game.WSMessage{
		Type: "initial_state",
		Data: s.gameManager.Snapshot(),
	}, log)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Debug("websocket read", zap.Error(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "place_bet":
			ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
			resp, _ := s.placeBet(ctx, game.BetRequest{UserID: userID, Amount: msg.Amount})
			cancel()
			client.SendJSON(game.WSMessage{Type: "bet_response", Data: resp}, log)

		case "cashout":
			ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
			resp, _ := s.cashOut(ctx, game.CashoutRequest{UserID: userID, BetID: msg.BetID})
			cancel()
			client.SendJSON(game.WSMessage{Type: "cashout_response", Data: resp}, log)

		case "ping":
			client.SendJSON(game.WSMessage{Type: "pong"}, log)
		}
	}
}
