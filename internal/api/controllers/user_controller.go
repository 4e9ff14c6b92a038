package controllers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"wishdoc/internal/perrors"
	"wishdoc/internal/services"
	"wishdoc/internal/services/user"
)

func RegisterUserRoutes(r *router.Router, svc *services.Services) {
	// Bootstrap the single admin account. Public on purpose: it only
	// ever succeeds once.
	r.POST("/adminuser", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		var req user.CreateUserRequest
		if err := parseBody(ctx, &req); err != nil {
			req.ID = string(ctx.PostArgs().Peek("id"))
			req.Password = string(ctx.PostArgs().Peek("password"))
			req.Name = string(ctx.PostArgs().Peek("name"))
			req.Email = string(ctx.PostArgs().Peek("email"))
		}

		admin, err := svc.User.BootstrapAdmin(stdCtx, &req)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to create admin user", err)
			return
		}
		writeOK(ctx, stdCtx, "", userResponse(admin))
	})

	// Create a member account (admin only)
	r.POST("/user", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		var req user.CreateUserRequest
		if err := parseBody(ctx, &req); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		u, err := svc.User.Create(stdCtx, actor(ctx), &req)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to create user", err)
			return
		}
		writeOK(ctx, stdCtx, "", userResponse(u))
	})

	// Fetch an account (self or admin)
	r.GET("/user/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		id, err := pathParam(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "User ID is required", perrors.NewErrInvalidRequest("User ID is required", err))
			return
		}

		u, err := svc.User.Get(stdCtx, actor(ctx), id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get user", err)
			return
		}
		writeOK(ctx, stdCtx, "", userResponse(u))
	})

	// Delete an account (admin only, never an admin target)
	r.DELETE("/user/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		id, err := pathParam(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "User ID is required", perrors.NewErrInvalidRequest("User ID is required", err))
			return
		}

		if err := svc.User.Delete(stdCtx, actor(ctx), id); err != nil {
			writeError(ctx, stdCtx, "Failed to delete user", err)
			return
		}
		writeOK[any](ctx, stdCtx, "", nil)
	})

	// Full-text search over accounts
	r.GET("/searchUsers", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		q, err := requireStringQuery(ctx, "q")
		if err != nil {
			writeError(ctx, stdCtx, "parameter: q is required.", perrors.NewErrInvalidRequest("parameter: q is required.", err))
			return
		}

		users, err := svc.User.Search(stdCtx, q)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to search users", err)
			return
		}
		writeOK(ctx, stdCtx, "", users)
	})
}
