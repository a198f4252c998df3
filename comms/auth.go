package comms

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"
)

// jwtLifespan is how long an issued control token remains valid.
const jwtLifespan = time.Hour

type jwtContextKey struct{}

// LoginPayload is the credential body POSTed to /api/login.
type LoginPayload struct {
	Password string `json:"password"`
}

func (l *LoginPayload) Bind(r *http.Request) error { return nil }

// JWTPayload wraps a signed token in the shape returned to callers.
type JWTPayload struct {
	SignedToken string `json:"token"`
}

// Authenticator issues and validates the JWTs that gate the control
// surface (motion commands). There is exactly one operator credential,
// configured as a bcrypt hash: this driver has no multi-user store, so
// it does not carry one just to authenticate a single control channel.
type Authenticator struct {
	secret       []byte
	passwordHash []byte
}

// NewAuthenticator builds an Authenticator from a signing secret and the
// bcrypt hash of the operator password.
func NewAuthenticator(secret, passwordHash []byte) *Authenticator {
	return &Authenticator{secret: secret, passwordHash: passwordHash}
}

func (a *Authenticator) newToken(subject string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.StandardClaims{
		Issuer:    "kobukid",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(jwtLifespan).Unix(),
		Subject:   subject,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(a.secret)
}

// Login checks the posted password against the configured operator hash
// and, on success, returns a signed control token.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request) {
	data := &LoginPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(data.Password)); err != nil {
		render.Render(w, r, ErrUnauthorized(errors.New("invalid password")))
		return
	}

	tokenString, err := a.newToken("operator")
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, JWTPayload{tokenString})
}

// Middleware rejects any request without a valid, unexpired token,
// accepted from the jwt query parameter, an Authorization: Bearer
// header, or a jwt cookie, in that order of precedence.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("jwt")

		if tokenStr == "" {
			bearer := r.Header.Get("Authorization")
			if len(bearer) > 7 && strings.EqualFold(bearer[0:6], "bearer") {
				tokenStr = bearer[7:]
			}
		}

		if tokenStr == "" {
			if cookie, err := r.Cookie("jwt"); err == nil {
				tokenStr = cookie.Value
			}
		}

		if tokenStr == "" {
			render.Render(w, r, ErrUnauthorized(errors.New("bearer token not provided")))
			return
		}

		token, err := jwt.ParseWithClaims(tokenStr, &jwt.StandardClaims{}, func(*jwt.Token) (interface{}, error) {
			return a.secret, nil
		})
		if err != nil {
			render.Render(w, r, ErrUnauthorized(err))
			return
		}

		if !token.Valid {
			render.Render(w, r, ErrUnauthorized(errors.New("invalid token")))
			return
		}

		ctx := context.WithValue(r.Context(), jwtContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
