package router

import (
	"showcase/internal/handlers"
	"showcase/internal/identity"
	"showcase/internal/middleware"
	"showcase/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "showcase_session"

// Deps 由 main 构建并注入
type Deps struct {
	Tokens        *identity.Tokens
	SessionSecret string
	SecureCookies bool

	Accounts    *services.AccountService
	Projects    *services.ProjectService
	Ranking     *services.RankingService
	Engine      *services.VoteEngine
	Consistency *services.ConsistencyService
	Deadline    *services.Deadline
	Metrics     *services.Metrics
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	store := cookie.NewStore([]byte(d.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   d.SecureCookies,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.ResolveIdentity(d.Tokens, middleware.CookieOptions{Secure: d.SecureCookies}))

	// Handlers
	authHandler := handlers.NewAuthHandler(d.Accounts)
	projectHandler := handlers.NewProjectHandler(d.Projects, d.Ranking)
	voteHandler := handlers.NewVoteHandler(d.Engine, d.Ranking, d.Deadline)
	bootcampHandler := handlers.NewBootcampHandler(d.Projects, d.Deadline)
	adminHandler := handlers.NewAdminHandler(d.Projects, d.Ranking, d.Consistency)
	pageHandler := handlers.NewPageHandler(d.Projects, d.Ranking, d.Deadline)
	userHandler := handlers.NewUserHandler(d.Accounts, d.Projects, d.Ranking)

	// 页面 (Pages)
	r.GET("/", pageHandler.Leaderboard)      // 排行榜首页
	r.GET("/p/:id", pageHandler.ProjectPage) // 项目详情页
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register) // 注册
		api.POST("/auth/login", authHandler.Login)       // 登录
		api.POST("/auth/logout", authHandler.Logout)     // 退出登录

		api.GET("/deadline", bootcampHandler.Deadline)     // 截止时间信息
		api.GET("/bootcamps", bootcampHandler.List)        // 进行中的训练营
		api.GET("/projects", projectHandler.List)          // 排行榜（含 hasVoted）
		api.GET("/projects/:id", projectHandler.Detail)    // 项目详情
		api.POST("/projects/:id/vote", voteHandler.Toggle) // 投票/取消投票，匿名可用
	}

	// 需要登录
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/auth/me", authHandler.Me)                             // 当前用户
		authorized.POST("/auth/change-password", authHandler.ChangePassword)   // 修改密码
		authorized.POST("/projects", projectHandler.Create)                    // 提交作品
		authorized.PUT("/projects/:id", projectHandler.Update)                 // 编辑自己的作品
		authorized.DELETE("/projects/:id", projectHandler.Delete)              // 删除自己的作品
		authorized.GET("/users/:id/projects", userHandler.Projects)            // 我的作品
		authorized.GET("/users/:id/favorites", userHandler.Favorites)          // 我投过票的作品
		authorized.PUT("/users/:id", userHandler.Update)                       // 修改资料（角色需管理员）
		authorized.GET("/users", middleware.AdminRequired(), userHandler.List) // 用户列表（管理员）
	}

	// 管理员
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.POST("/bootcamps", adminHandler.CreateBootcamp)     // 创建训练营
		admin.PUT("/projects/:id", adminHandler.UpdateProject)    // 修改/审核项目
		admin.DELETE("/projects/:id", adminHandler.DeleteProject) // 删除项目
		admin.GET("/consistency", adminHandler.Consistency)       // 计数一致性报告
		admin.POST("/consistency/sweep", adminHandler.Sweep)      // 立即全量核对
	}
}
