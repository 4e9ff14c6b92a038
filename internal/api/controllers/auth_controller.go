package controllers

import (
	"errors"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"wishdoc/internal/api/authenticator"
	"wishdoc/internal/perrors"
	"wishdoc/internal/services"
	"wishdoc/internal/services/user"
)

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID         string    `json:"user_id"`
	ScreenName string    `json:"screen_name,omitempty"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	Role       user.Role `json:"role"`
}

func userResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		ScreenName: u.ScreenName,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
	}
}

func setSessionCookie(ctx *fasthttp.RequestCtx, token string) {
	var cookie fasthttp.Cookie
	cookie.SetKey("access_token")
	cookie.SetValue(token)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(false) // set to true behind HTTPS
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetExpire(time.Now().Add(24 * time.Hour))
	ctx.Response.Header.SetCookie(&cookie)
}

func clearSessionCookie(ctx *fasthttp.RequestCtx) {
	var cookie fasthttp.Cookie
	cookie.SetKey("access_token")
	cookie.SetValue("")
	cookie.SetPath("/")
	cookie.SetExpire(fasthttp.CookieExpireDelete)
	ctx.Response.Header.SetCookie(&cookie)
}

func RegisterAuthRoutes(r *router.Router, svc *services.Services, auth *authenticator.Authenticator) {
	// Login with user id and password
	r.POST("/login", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		var req LoginRequest
		if err := parseBody(ctx, &req); err != nil {
			// fall back to form fields for browser posts
			req.UserID = string(ctx.PostArgs().Peek("user_id"))
			req.Password = string(ctx.PostArgs().Peek("password"))
		}
		if req.UserID == "" || req.Password == "" {
			writeError(ctx, stdCtx, "Not valid user_id or password.", perrors.NewErrInvalidCredential("missing credentials", nil))
			return
		}

		u, err := svc.User.Authenticate(stdCtx, req.UserID, req.Password)
		if err != nil {
			writeError(ctx, stdCtx, "Not valid user_id or password.", err)
			return
		}

		token, err := auth.IssueToken(user.Resolved{ID: u.ID, ScreenName: u.ScreenName, Role: u.Role})
		if err != nil {
			writeError(ctx, stdCtx, "Failed to generate token", perrors.NewErrInternalServerError("Failed to generate token", err))
			return
		}

		setSessionCookie(ctx, token)
		writeOK(ctx, stdCtx, "", LoginResponse{Token: token, User: userResponse(u)})
	})

	// Logout revokes the presented token
	r.POST("/logout", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		if token := sessionToken(ctx); token != "" {
			if err := auth.Revoke(stdCtx, token); err != nil {
				writeError(ctx, stdCtx, "Failed to revoke token", err)
				return
			}
		}

		clearSessionCookie(ctx)
		writeOK[any](ctx, stdCtx, "", nil)
	})

	// Current identity
	r.GET("/auth/me", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		resolved := actor(ctx)
		if resolved.ID == "" {
			writeError(ctx, stdCtx, "No token provided.", perrors.NewErrInvalidCredential("no token provided", nil))
			return
		}

		// OAuth-only identities have no stored account; answer from the
		// credential itself.
		u, err := svc.User.Get(stdCtx, resolved, resolved.ID)
		if err != nil {
			writeOK(ctx, stdCtx, "", UserResponse{ID: resolved.ID, ScreenName: resolved.ScreenName, Role: resolved.Role})
			return
		}
		writeOK(ctx, stdCtx, "", userResponse(u))
	})

	// OAuth login start
	r.GET("/oauth", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		if !auth.OAuthEnabled() {
			writeError(ctx, stdCtx, "OAuth login is not configured", perrors.NewErrInvalidRequest("oauth login is not configured", errors.New("no provider")))
			return
		}

		url, err := auth.LoginURL(string(ctx.QueryArgs().Peek("redirect")))
		if err != nil {
			writeError(ctx, stdCtx, "Failed to start OAuth login", perrors.NewErrInternalServerError("Failed to start OAuth login", err))
			return
		}
		ctx.Redirect(url, fasthttp.StatusFound)
	})

	// OAuth callback
	r.GET("/oauth/callback", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		state, err := auth.VerifyState(string(ctx.QueryArgs().Peek("state")))
		if err != nil {
			ctx.Redirect("/", fasthttp.StatusFound)
			return
		}

		resolved, err := auth.Exchange(stdCtx, string(ctx.QueryArgs().Peek("code")))
		if err != nil {
			ctx.Redirect("/", fasthttp.StatusFound)
			return
		}

		token, err := auth.IssueToken(resolved)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to generate token", perrors.NewErrInternalServerError("Failed to generate token", err))
			return
		}

		setSessionCookie(ctx, token)
		redirect := state.Redirect
		if redirect == "" {
			redirect = "/"
		}
		ctx.Redirect(redirect, fasthttp.StatusFound)
	})
}

// sessionToken pulls the credential from the Authorization header or
// the session cookie.
func sessionToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return string(ctx.Request.Header.Cookie("access_token"))
}
