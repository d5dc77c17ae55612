package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/uzzalhcse/crawlify/internal/pattern"
	"github.com/uzzalhcse/crawlify/internal/proxy"
	"github.com/uzzalhcse/crawlify/internal/quirks"
)

// AdminHandler exposes read/operator endpoints over the learning
// subsystems: proxy health, domain risk, pattern health and site quirks.
type AdminHandler struct {
	proxies  *proxy.Manager
	patterns *pattern.Registry
	health   *pattern.HealthMonitor
	quirksReg *quirks.Registry
}

func NewAdminHandler(proxies *proxy.Manager, patterns *pattern.Registry, health *pattern.HealthMonitor, quirksReg *quirks.Registry) *AdminHandler {
	return &AdminHandler{proxies: proxies, patterns: patterns, health: health, quirksReg: quirksReg}
}

// GetPattern returns one learned pattern by ID.
func (h *AdminHandler) GetPattern(c *fiber.Ctx) error {
	p := h.patterns.Get(c.Params("id"))
	if p == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "pattern not found"})
	}
	return c.JSON(p)
}

// ArchivePattern retires a pattern so it is no longer matched against.
func (h *AdminHandler) ArchivePattern(c *fiber.Ctx) error {
	h.patterns.Archive(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

// PendingNotifications returns unacknowledged pattern health downgrades.
func (h *AdminHandler) PendingNotifications(c *fiber.Ctx) error {
	return c.JSON(h.health.PendingNotifications())
}

// AcknowledgeNotification marks a health notification as seen.
func (h *AdminHandler) AcknowledgeNotification(c *fiber.Ctx) error {
	h.health.Acknowledge(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

// GetQuirks returns the learned quirks record for a domain.
func (h *AdminHandler) GetQuirks(c *fiber.Ctx) error {
	q := h.quirksReg.Get(c.Params("domain"))
	if q == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no quirks learned for domain"})
	}
	return c.JSON(q)
}

// ClearProxyCooldown manually clears a forced or learned cooldown.
func (h *AdminHandler) ClearProxyCooldown(c *fiber.Ctx) error {
	h.proxies.ClearProxyCooldown(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearDomainBlocks manually clears per-domain proxy blocks.
func (h *AdminHandler) ClearDomainBlocks(c *fiber.Ctx) error {
	h.proxies.ClearDomainBlocks(c.Params("domain"))
	return c.SendStatus(fiber.StatusNoContent)
}

// GetDomainRisk returns the Domain Risk Classifier's current assessment for
// a domain (§4.5).
func (h *AdminHandler) GetDomainRisk(c *fiber.Ctx) error {
	return c.JSON(h.proxies.DomainRisk(c.Params("domain")))
}

// GetUnhealthyPatterns lists every learned pattern whose health has
// dropped below healthy (§4.7).
func (h *AdminHandler) GetUnhealthyPatterns(c *fiber.Ctx) error {
	return c.JSON(h.patterns.Unhealthy())
}

// GetProxyPoolStats reports the configured proxy count per tier (§4.2).
func (h *AdminHandler) GetProxyPoolStats(c *fiber.Ctx) error {
	return c.JSON(h.proxies.PoolStats())
}

// GetProxyHealth returns a snapshot of every tracked proxy's health record.
func (h *AdminHandler) GetProxyHealth(c *fiber.Ctx) error {
	return c.JSON(h.proxies.AllProxyHealth())
}
