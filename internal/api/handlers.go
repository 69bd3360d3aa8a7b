package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/service"
)

func (s *Server) createConversation(c *fiber.Ctx) error {
	var req struct {
		CounterpartID string                     `json:"counterpart_id"`
		Context       domain.ConversationContext `json:"context"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.InvalidArg("invalid body"))
	}
	res, err := s.convs.CreateOrFind(c.Context(), callerID(c), req.CounterpartID, req.Context)
	if err != nil {
		return s.fail(c, err)
	}
	status := fiber.StatusOK
	if res.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(res)
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	filter := domain.ConversationListFilter(c.Query("filter", string(domain.FilterInbox)))
	limit := int64(c.QueryInt("limit", 50))
	var before time.Time
	if cursor := c.Query("cursor"); cursor != "" {
		t, err := time.Parse(time.RFC3339, cursor)
		if err != nil {
			return s.fail(c, domain.InvalidArg("invalid cursor"))
		}
		before = t
	}
	out, err := s.convs.List(c.Context(), callerID(c), filter, before, limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": out})
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	var after, before time.Time
	if v := c.Query("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return s.fail(c, domain.InvalidArg("invalid after"))
		}
		after = t
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return s.fail(c, domain.InvalidArg("invalid before"))
		}
		before = t
	}
	limit := int64(c.QueryInt("limit", 50))
	out, err := s.msgs.List(c.Context(), callerID(c), c.Params("id"), after, before, limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": out})
}

func (s *Server) resync(c *fiber.Ctx) error {
	snap, err := s.convs.Resync(c.Context(), callerID(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(snap)
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var req service.SendInput
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.InvalidArg("invalid body"))
	}
	req.ConversationID = c.Params("id")
	msg, err := s.msgs.Send(c.Context(), callerID(c), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (s *Server) accept(c *fiber.Ctx) error {
	if err := s.convs.Accept(c.Context(), callerID(c), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) decline(c *fiber.Ctx) error {
	if err := s.convs.Decline(c.Context(), callerID(c), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) setMuted(muted bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.convs.SetMuted(c.Context(), callerID(c), c.Params("id"), muted); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func (s *Server) setArchived(archived bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.convs.SetArchived(c.Context(), callerID(c), c.Params("id"), archived); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func (s *Server) readReceipt(c *fiber.Ctx) error {
	var req struct {
		MessageID string `json:"message_id"`
	}
	_ = c.BodyParser(&req)
	if err := s.convs.MarkRead(c.Context(), callerID(c), c.Params("id"), req.MessageID); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) createBlock(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.InvalidArg("invalid body"))
	}
	if err := s.moderation.Block(c.Context(), callerID(c), req.UserID, req.Reason); err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok"})
}

func (s *Server) deleteBlock(c *fiber.Ctx) error {
	if err := s.moderation.Unblock(c.Context(), callerID(c), c.Params("user_id")); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) createReport(c *fiber.Ctx) error {
	var req service.ReportInput
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.InvalidArg("invalid body"))
	}
	report, err := s.moderation.Report(c.Context(), callerID(c), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (s *Server) initAttachment(c *fiber.Ctx) error {
	var req service.InitInput
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.InvalidArg("invalid body"))
	}
	res, err := s.attachments.Init(c.Context(), callerID(c), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) completeAttachment(c *fiber.Ctx) error {
	att, err := s.attachments.Complete(c.Context(), callerID(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(att)
}

func (s *Server) downloadURL(c *fiber.Ctx) error {
	url, err := s.attachments.DownloadURL(c.Context(), callerID(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

func (s *Server) adminListReports(c *fiber.Ctx) error {
	status := domain.ReportStatus(c.Query("status"))
	limit := int64(c.QueryInt("limit", 50))
	offset := int64(c.QueryInt("offset", 0))
	out, err := s.moderation.ListReports(c.Context(), status, limit, offset)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": out})
}

func (s *Server) adminActOnReport(c *fiber.Ctx) error {
	var req struct {
		Action domain.ModerationAction `json:"action"`
		Note   string                  `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.InvalidArg("invalid body"))
	}
	audit, err := s.moderation.ActOnReport(c.Context(), callerID(c), c.Params("id"), req.Action, req.Note)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(audit)
}

func (s *Server) adminListAudit(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 50))
	offset := int64(c.QueryInt("offset", 0))
	out, err := s.moderation.ListAudit(c.Context(), limit, offset)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": out})
}

func (s *Server) adminMetrics(c *fiber.Ctx) error {
	window := c.QueryInt("window_days", 30)
	m, err := s.moderation.Metrics(c.Context(), window)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(m)
}
