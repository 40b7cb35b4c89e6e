package controllers

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
	"github.com/offlabel-design/launchbase/app/repository"
	"github.com/offlabel-design/launchbase/internal/pkg/env"
	"github.com/offlabel-design/launchbase/internal/pkg/hcaptcha"
	"github.com/offlabel-design/launchbase/internal/pkg/mail"
	"github.com/offlabel-design/launchbase/internal/pkg/session"
	icuser "github.com/offlabel-design/launchbase/internal/pkg/usercontext"
	"github.com/offlabel-design/launchbase/internal/pkg/utils"
)

// AuthController handles email/password sign-in, registration and account
// activation. Repositories are injected at construction.
type AuthController struct {
	users repository.UserRepository
}

func NewAuthController(users repository.UserRepository) *AuthController {
	return &AuthController{users: users}
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{"type": "error"}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		user, err := ac.users.GetByEmail(c.FormValue("email"))
		if err != nil {
			fm["message"] = "There is a problem with the login process"
			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.CheckPassword(c.FormValue("password")) {
			fm["message"] = "There is a problem with the login process"
			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.IsActive() {
			fm["message"] = "Please activate your account first. Check your inbox."
			return flash.WithError(c, fm).Redirect("/login")
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)
			return flash.WithError(c, fm).Redirect("/login")
		}

		sess.Set(icuser.AuthKey, true)
		sess.Set(icuser.KeyUserID, user.ID)
		sess.Set(icuser.KeyUsername, user.Name)
		sess.Set(icuser.KeyIsAdmin, user.Role == models.ROLE_ADMIN)

		if err := sess.Save(); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)
			return flash.WithError(c, fm).Redirect("/login")
		}

		now := time.Now()
		user.LastLoginAt = &now
		if err := ac.users.Update(user); err != nil {
			log.Printf("failed to update last login for user %d: %v", user.ID, err)
		}

		fm = fiber.Map{"type": "success", "message": "Welcome back!"}
		return flash.WithSuccess(c, fm).Redirect("/dashboard")
	}

	return c.Render("auth/login", fiber.Map{
		"Title": "Sign in",
		"CSRF":  c.Locals("csrf"),
		"Flash": flash.Get(c),
	}, "layouts/main")
}

func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		if hcaptcha.Enabled() {
			if ok, err := hcaptcha.Verify(c.FormValue("h-captcha-response")); !ok {
				log.Printf("captcha verification failed: %v", err)
				fm := fiber.Map{"type": "error", "message": "Captcha verification failed, please try again"}
				return flash.WithError(c, fm).Redirect("/register")
			}
		}

		user, err := models.CreateUser(c.FormValue("username"), c.FormValue("email"), c.FormValue("password"))
		if err != nil {
			fm := fiber.Map{"type": "error", "message": fmt.Sprintf("something went wrong: %s", err)}
			return flash.WithError(c, fm).Redirect("/register")
		}

		user.AvatarURL = utils.GetGravatarURL(user.Email, 200)

		if err := user.GenerateActivationToken(); err != nil {
			fm := fiber.Map{"type": "error", "message": "could not prepare activation"}
			return flash.WithError(c, fm).Redirect("/register")
		}

		if err := ac.users.Create(user); err != nil {
			fm := fiber.Map{"type": "error", "message": fmt.Sprintf("something went wrong: %s", err)}
			return flash.WithError(c, fm).Redirect("/register")
		}

		go ac.sendActivationMail(user)

		fm := fiber.Map{"type": "success", "message": "Account created! Check your inbox for the activation link."}
		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/register", fiber.Map{
		"Title":           "Create account",
		"CSRF":            c.Locals("csrf"),
		"HCaptchaSiteKey": env.GetEnv("HCAPTCHA_SITE_KEY", ""),
		"Flash":           flash.Get(c),
	}, "layouts/main")
}

func (ac *AuthController) HandleActivate(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	fm := fiber.Map{"type": "error"}
	if token == "" {
		fm["message"] = "Activation token is missing"
		return flash.WithError(c, fm).Redirect("/login")
	}

	user, err := ac.users.GetByActivationToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fm["message"] = "Invalid or expired activation token"
			return flash.WithError(c, fm).Redirect("/login")
		}
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)
		return flash.WithError(c, fm).Redirect("/login")
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	if err := ac.users.Update(user); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)
		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{"type": "success", "message": "Account activated, you can sign in now."}
	return flash.WithSuccess(c, fm).Redirect("/login")
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	fm := fiber.Map{"type": "error"}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = "logged out (no sess)"
		return flash.WithError(c, fm).Redirect("/login")
	}

	if err := sess.Destroy(); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)
		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{"type": "success", "message": "See you soon!"}
	c.Locals(icuser.KeyFromProtected, false)
	return flash.WithSuccess(c, fm).Redirect("/login")
}

func (ac *AuthController) sendActivationMail(user *models.User) {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	link := fmt.Sprintf("%s/activate?token=%s", base, user.ActivationToken)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Confirm your account: <a href=\"%s\">%s</a></p>", user.Name, link, link)
	if err := mail.SendMail(user.Email, "Activate your account", body); err != nil {
		log.Printf("failed to send activation mail to user %d: %v", user.ID, err)
	}
}
