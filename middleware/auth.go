package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/volunteerhub/feed-bff/internal/domain"
)

type contextKey string

const (
	ViewerKey      contextKey = "viewer"
	BearerTokenKey contextKey = "bearer_token"
)

// Auth resolves the viewer from a bearer token. Requests without a valid
// token pass through anonymously; RequireViewer rejects them where needed.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				next.ServeHTTP(w, r)
				return
			}

			viewer := viewerFromClaims(claims)
			if viewer.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithViewer(r.Context(), viewer, authHeader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireViewer answers 401 for anonymous requests.
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetViewer(r.Context()).Authenticated() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required","request_id":"` + GetRequestID(r.Context()) + `"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// The backend issues numeric ids under uid, userId or sub.
func viewerFromClaims(claims jwt.MapClaims) domain.Viewer {
	var v domain.Viewer
	for _, k := range []string{"uid", "userId", "sub"} {
		if id := claimString(claims[k]); id != "" {
			v.UserID = id
			break
		}
	}
	for _, k := range []string{"fullName", "name", "username"} {
		if name := claimString(claims[k]); name != "" {
			v.DisplayName = name
			break
		}
	}
	v.Role = domain.Role(strings.ToUpper(claimString(claims["role"])))
	return v
}

func claimString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}

// ViewerFromToken reads the viewer from a token without checking its
// signature. The CLI uses it; the backend still verifies every call.
func ViewerFromToken(token string) (domain.Viewer, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return domain.Viewer{}, err
	}
	return viewerFromClaims(claims), nil
}

func WithViewer(ctx context.Context, viewer domain.Viewer, bearer string) context.Context {
	ctx = context.WithValue(ctx, ViewerKey, viewer)
	return context.WithValue(ctx, BearerTokenKey, bearer)
}

func GetViewer(ctx context.Context) domain.Viewer {
	v, ok := ctx.Value(ViewerKey).(domain.Viewer)
	if !ok {
		return domain.Viewer{}
	}
	return v
}

func GetBearerToken(ctx context.Context) string {
	token, ok := ctx.Value(BearerTokenKey).(string)
	if !ok {
		return ""
	}
	return token
}
