package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/config"
	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/metrics"
	"github.com/splits-network/messaging-service/internal/service"
)

type Server struct {
	convs       *service.ConversationService
	msgs        *service.MessageService
	attachments *service.AttachmentService
	moderation  *service.ModerationService
	log         *zap.SugaredLogger
}

func NewServer(
	cfg *config.Config,
	convs *service.ConversationService,
	msgs *service.MessageService,
	attachments *service.AttachmentService,
	moderation *service.ModerationService,
	log *zap.SugaredLogger,
) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberlogger.New())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	s := &Server{convs: convs, msgs: msgs, attachments: attachments, moderation: moderation, log: log}

	v1 := app.Group("/v1", JWTAuthMiddleware(cfg.App.JWTSecret))

	v1.Post("/conversations", s.createConversation)
	v1.Get("/conversations", s.listConversations)
	v1.Get("/conversations/:id/messages", s.listMessages)
	v1.Get("/conversations/:id/resync", s.resync)
	v1.Post("/conversations/:id/messages", s.sendMessage)
	v1.Post("/conversations/:id/accept", s.accept)
	v1.Post("/conversations/:id/decline", s.decline)
	v1.Post("/conversations/:id/mute", s.setMuted(true))
	v1.Delete("/conversations/:id/mute", s.setMuted(false))
	v1.Post("/conversations/:id/archive", s.setArchived(true))
	v1.Delete("/conversations/:id/archive", s.setArchived(false))
	v1.Post("/conversations/:id/read-receipt", s.readReceipt)

	v1.Post("/blocks", s.createBlock)
	v1.Delete("/blocks/:user_id", s.deleteBlock)
	v1.Post("/reports", s.createReport)

	v1.Post("/attachments/init", s.initAttachment)
	v1.Post("/attachments/:id/complete", s.completeAttachment)
	v1.Get("/attachments/:id/download-url", s.downloadURL)

	admin := v1.Group("/admin", AdminOnly())
	admin.Get("/reports", s.adminListReports)
	admin.Post("/reports/:id/action", s.adminActOnReport)
	admin.Get("/audit", s.adminListAudit)
	admin.Get("/metrics", s.adminMetrics)

	return app
}

var statusByCode = map[domain.Code]int{
	domain.CodeInvalidArgument:       fiber.StatusBadRequest,
	domain.CodeNotFound:              fiber.StatusNotFound,
	domain.CodeAccessDenied:          fiber.StatusForbidden,
	domain.CodeRequestNotAccepted:    fiber.StatusConflict,
	domain.CodeConversationDeclined:  fiber.StatusConflict,
	domain.CodeDeliveryBlocked:       fiber.StatusUnprocessableEntity,
	domain.CodeRequestThrottled:      fiber.StatusTooManyRequests,
	domain.CodeAttachmentsNotAllowed: fiber.StatusUnprocessableEntity,
	domain.CodeRecipientArchived:     fiber.StatusConflict,
}

// fail maps domain error codes onto HTTP statuses. Internal details stay in
// the logs; callers only ever see the stable code and message.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	code := domain.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	var de *domain.Error
	msg := "internal error"
	if errors.As(err, &de) && code != domain.CodeInternal {
		msg = de.Message
	}
	if status == fiber.StatusInternalServerError {
		s.log.Errorw("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": fiber.Map{"code": code, "message": msg}})
}
