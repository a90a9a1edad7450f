package user

import (
	"errors"
	"net/http"
	"strings"

	"MuseShare/global"
	"MuseShare/tools/errs"
	"MuseShare/tools/security"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func respondErr(c *gin.Context, err error) {
	var ce *errs.CodeError
	if !errors.As(err, &ce) {
		ce = errs.ErrInternal.WithDetail(err.Error())
	}
	c.JSON(errs.HTTPStatus(err), ce)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandlerLogin POST /api/auth/login
//
// Unknown email and wrong password return the same error, so the endpoint
// does not leak which accounts exist.
func (h *Handler) HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondErr(c, errs.ErrValidation.WithDetail("email and password are required"))
		return
	}

	u, err := h.store.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondErr(c, err)
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		respondErr(c, errs.ErrNoPermission.WithDetail("invalid credentials"))
		return
	}

	opts := security.DefaultOptions([]byte(global.Config.JWTSecret))
	token, expireAt, err := security.Generate(opts, u.ID)
	if err != nil {
		respondErr(c, errs.ErrInternal.WithDetail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"expireAt": expireAt,
		"user":     u,
	})
}
