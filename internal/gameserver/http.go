package gameserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/inventory"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/game/skill"
	"github.com/cory-johannsen/corsair/internal/observability"
)

const sessionKey = "session"

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Accounts *AccountService
	Battles  *BattleService
	Chat     *ChatHub
	Sessions *session.Manager
	Tokens   *TokenIssuer
	Catalog  SkillCatalog
	Logger   *zap.Logger
}

// HTTPOptions holds the transport settings of the HTTP layer.
type HTTPOptions struct {
	CookieName   string
	SecureCookie bool
	// StaticDir, when set, is served for every unmatched path.
	StaticDir string
}

type api struct {
	Deps
	opts HTTPOptions
}

// NewRouter builds the gin engine: the JSON API under /api and the chat websocket at
// /ws/chat. Every route except signup and login requires the session cookie.
func NewRouter(d Deps, opts HTTPOptions) *gin.Engine {
	a := &api{Deps: d, opts: opts}

	r := gin.New()
	r.Use(observability.Recovery(d.Logger), observability.RequestLogger(d.Logger))

	pub := r.Group("/api")
	pub.POST("/signup", a.signup)
	pub.POST("/login", a.login)

	auth := r.Group("")
	auth.Use(a.requireSession)
	{
		g := auth.Group("/api")
		g.POST("/logout", a.logout)
		g.GET("/me", a.me)

		g.GET("/characters", a.listCharacters)
		g.POST("/characters", a.createCharacter)
		g.POST("/characters/:id/select", a.selectCharacter)

		g.GET("/character", a.activeCharacter)
		g.PUT("/character/inventory", a.updateInventory)
		g.POST("/character/points", a.distributePoints)
		g.PUT("/character/skills/:slot", a.equipSkill)
		g.GET("/skills", a.listSkills)

		g.GET("/battle", a.getBattle)
		g.POST("/battle/start", a.startBattle)
		g.POST("/battle/attack", a.attack)
		g.POST("/battle/skill", a.useSkill)
		g.POST("/battle/flee", a.flee)

		g.GET("/chat/history", a.chatHistory)
		auth.GET("/ws/chat", a.chatSocket)
	}

	if opts.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(opts.StaticDir))))
	}
	return r
}

// requireSession resolves the session cookie into the live session.Info.
func (a *api) requireSession(c *gin.Context) {
	token, err := c.Cookie(a.opts.CookieName)
	if err != nil || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	sid, accountID, err := a.Tokens.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}
	info, err := a.Sessions.Get(sid)
	if err != nil || info.AccountID != accountID {
		a.clearCookie(c)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}
	c.Set(sessionKey, info)
	c.Next()
}

func currentSession(c *gin.Context) session.Info {
	return c.MustGet(sessionKey).(session.Info)
}

func (a *api) fail(c *gin.Context, err error) {
	status := statusFor(err)
	var rl *RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}
	if status == http.StatusInternalServerError {
		a.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": errorText(err)})
}

// rejectionBody is the JSON form of a refused battle action.
type rejectionBody struct {
	Kind      string `json:"kind"`
	SkillID   string `json:"skillId,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}

type outcomeBody struct {
	Outcome
	Rejection *rejectionBody `json:"rejection,omitempty"`
}

func (a *api) respond(c *gin.Context, out Outcome, err error) {
	if err != nil {
		a.fail(c, err)
		return
	}
	if out.Rejected() {
		c.JSON(rejectionStatus(out.Rejection), outcomeBody{
			Outcome: out,
			Rejection: &rejectionBody{
				Kind:      out.Rejection.Kind.String(),
				SkillID:   out.Rejection.SkillID,
				Remaining: out.Rejection.Remaining,
			},
		})
		return
	}
	c.JSON(http.StatusOK, outcomeBody{Outcome: out})
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *api) signup(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	acct, err := a.Accounts.Signup(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "account created",
		"account": gin.H{"id": acct.ID, "username": acct.Username},
	})
}

func (a *api) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	info, err := a.Accounts.Login(c.Request.Context(), c.ClientIP(), req.Username, req.Password)
	if err != nil {
		a.fail(c, err)
		return
	}
	token, err := a.Tokens.Issue(info)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.opts.CookieName, token, int(info.ExpiresAt.Sub(a.now()).Seconds()), "/", "", a.opts.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged in", "username": info.Username, "expiresAt": info.ExpiresAt})
}

func (a *api) now() time.Time { return a.Tokens.now() }

func (a *api) clearCookie(c *gin.Context) {
	c.SetCookie(a.opts.CookieName, "", -1, "/", "", a.opts.SecureCookie, true)
}

func (a *api) logout(c *gin.Context) {
	_ = a.Accounts.Logout(currentSession(c).ID)
	a.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (a *api) me(c *gin.Context) {
	info := currentSession(c)
	body := gin.H{"username": info.Username, "characterId": nil, "characterName": nil}
	if info.HasCharacter() {
		body["characterId"] = info.CharacterID
		body["characterName"] = info.CharacterName
	}
	c.JSON(http.StatusOK, body)
}

func (a *api) listCharacters(c *gin.Context) {
	list, err := a.Accounts.ListCharacters(c.Request.Context(), currentSession(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	if list == nil {
		list = []*character.Character{}
	}
	c.JSON(http.StatusOK, gin.H{"characters": list, "limit": character.MaxPerAccount})
}

func (a *api) createCharacter(c *gin.Context) {
	var req CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character request"})
		return
	}
	ch, err := a.Accounts.CreateCharacter(c.Request.Context(), currentSession(c), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Outcome{Message: ch.Name + " joins the crew.", Character: ch})
}

func (a *api) selectCharacter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character id"})
		return
	}
	_, ch, err := a.Accounts.SelectCharacter(c.Request.Context(), currentSession(c), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Outcome{Message: ch.Name + " selected.", Character: ch})
}

func (a *api) activeCharacter(c *gin.Context) {
	sess := currentSession(c)
	ch, err := a.Accounts.ActiveCharacter(c.Request.Context(), sess)
	if err != nil {
		a.fail(c, err)
		return
	}
	battle, err := a.Sessions.Battle(sess.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Outcome{Message: ch.Name, Character: ch, Battle: battle})
}

type inventoryRequest struct {
	Inventory []inventory.Entry `json:"inventory"`
}

func (a *api) updateInventory(c *gin.Context) {
	var req inventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inventory"})
		return
	}
	ch, err := a.Accounts.UpdateInventory(c.Request.Context(), currentSession(c), req.Inventory)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Outcome{Message: "inventory updated", Character: ch})
}

type pointsRequest struct {
	Stat   string `json:"stat" binding:"required"`
	Points int    `json:"points"`
}

func (a *api) distributePoints(c *gin.Context) {
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stat and points are required"})
		return
	}
	out, err := a.Battles.DistributePoints(c.Request.Context(), currentSession(c), req.Stat, req.Points)
	a.respond(c, out, err)
}

type skillRequest struct {
	SkillID string `json:"skillId"`
}

func (a *api) equipSkill(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}
	var req skillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skill request"})
		return
	}
	out, err := a.Battles.EquipSkill(c.Request.Context(), currentSession(c), slot, req.SkillID)
	a.respond(c, out, err)
}

func (a *api) listSkills(c *gin.Context) {
	ch, err := a.Accounts.ActiveCharacter(c.Request.Context(), currentSession(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	skills := a.Catalog.ForClass(ch.Class)
	if skills == nil {
		skills = []*skill.Skill{}
	}
	c.JSON(http.StatusOK, gin.H{"skills": skills, "learned": ch.LearnedSkills, "active": ch.ActiveSkills})
}

func (a *api) getBattle(c *gin.Context) {
	out, err := a.Battles.GetBattle(c.Request.Context(), currentSession(c))
	a.respond(c, out, err)
}

func (a *api) startBattle(c *gin.Context) {
	out, err := a.Battles.StartBattle(c.Request.Context(), currentSession(c))
	a.respond(c, out, err)
}

func (a *api) attack(c *gin.Context) {
	out, err := a.Battles.Attack(c.Request.Context(), currentSession(c))
	a.respond(c, out, err)
}

func (a *api) useSkill(c *gin.Context) {
	var req skillRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SkillID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skillId is required"})
		return
	}
	out, err := a.Battles.UseSkill(c.Request.Context(), currentSession(c), req.SkillID)
	a.respond(c, out, err)
}

func (a *api) flee(c *gin.Context) {
	out, err := a.Battles.Flee(c.Request.Context(), currentSession(c))
	a.respond(c, out, err)
}

func (a *api) chatHistory(c *gin.Context) {
	msgs, err := a.Chat.History(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "online": a.Sessions.ChatPresence()})
}

func (a *api) chatSocket(c *gin.Context) {
	sess := currentSession(c)
	if !sess.HasCharacter() {
		a.fail(c, ErrNoCharacterSelected)
		return
	}
	a.Chat.Serve(c.Writer, c.Request, sess)
}
