package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
	"github.com/offlabel-design/launchbase/internal/pkg/entitlements"
	"github.com/offlabel-design/launchbase/internal/pkg/session"
	icuser "github.com/offlabel-design/launchbase/internal/pkg/usercontext"
)

// UserContext builds the per-request user context from the app session.
// The DB handle is injected so the middleware can resolve the user's plan
// without reaching for ambient global state.
func UserContext(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Avoid interfering with Goth/Fiber session handling on OAuth routes.
		// Goth uses its own fiber session store and relies on per-request locals.
		if strings.HasPrefix(c.Path(), "/auth/") {
			return c.Next()
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			return anonymous(c)
		}

		userID := sess.Get(icuser.KeyUserID)
		if userID == nil {
			return anonymous(c)
		}

		username := session.GetSessionValue(c, icuser.KeyUsername)
		isAdmin := sess.Get(icuser.KeyIsAdmin)

		// Determine plan with session-first strategy
		plan := session.GetSessionValue(c, icuser.KeyUserPlan)
		if plan == "" {
			plan = string(entitlements.PlanFree)
			if db != nil {
				var sub models.Subscription
				if err := db.Where("user_id = ?", userID.(uint)).First(&sub).Error; err == nil && sub.Plan != "" {
					plan = sub.Plan
				}
			}
			// cache in session for subsequent requests
			_ = session.SetSessionValue(c, icuser.KeyUserPlan, plan)
		}

		userCtx := icuser.UserContext{
			UserID:     userID.(uint),
			Username:   username,
			IsLoggedIn: true,
			IsAdmin:    isAdmin != nil && isAdmin.(bool),
			Plan:       plan,
		}
		c.Locals("USER_CONTEXT", userCtx)
		c.Locals(icuser.KeyFromProtected, true)
		c.Locals(icuser.KeyUsername, username)
		c.Locals(icuser.KeyUserID, userID.(uint))
		c.Locals(icuser.KeyIsAdmin, userCtx.IsAdmin)

		return c.Next()
	}
}

func anonymous(c *fiber.Ctx) error {
	c.Locals("USER_CONTEXT", icuser.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	c.Locals(icuser.KeyFromProtected, false)
	c.Locals(icuser.KeyIsAdmin, false)
	return c.Next()
}
