package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/feedhub/pkg/identity"
)

// TokenTTL は発行するトークンの有効期間。
const TokenTTL = time.Hour

// tokenIssuer はトークンのiss値。
const tokenIssuer = "feedhub"

// contextKeyIdentity はGinコンテキストにIdentityを格納するためのキー。
const contextKeyIdentity = "identity"

// ErrEmptySecret は署名鍵が設定されていない場合のエラー。
var ErrEmptySecret = errors.New("JWT署名鍵が設定されていません")

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"userId"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// TokenService はトークンの発行と検証を行う。
// サーバー側にセッション状態を持たない。
type TokenService struct {
	// secret はHS256署名鍵。
	secret []byte
	// ttl はトークンの有効期間。
	ttl time.Duration
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
}

// TokenOption はTokenServiceの設定を変更する。
type TokenOption func(*TokenService)

// WithClock は時刻の取得関数を差し替える。
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenService) {
		t.now = now
	}
}

// NewTokenService は新しいTokenServiceを生成する。
// 署名鍵が空の場合は認証付きトラフィックを処理できないためエラーを返す。
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	t := &TokenService{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue はユーザー情報から署名済みトークンを生成する。
func (t *TokenService) Issue(userID, email string) (string, error) {
	now := t.now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証する。
// 形式不正・期限切れ・署名不一致のいずれもokがfalseになるだけで、エラーにはしない。
func (t *TokenService) Verify(tokenString string) (*JWTClaims, bool) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, false
	}
	return claims, true
}

// AuthGate はすべてのリクエストでトークン検証を試みるGinミドルウェアを返す。
// ヘッダーが無い場合もトークンが無効な場合も匿名として処理を継続し、
// このミドルウェア自身がエラーレスポンスを返すことはない。
// 認証が必要かどうかは後段の各操作が判断する。
func AuthGate(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity.Anonymous()

		if tokenString, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, valid := tokens.Verify(tokenString); valid {
				id = identity.Authenticated(claims.UserID, claims.Email)
			}
		}

		c.Set(contextKeyIdentity, id)
		c.Request = c.Request.WithContext(identity.WithContext(c.Request.Context(), id))
		c.Next()
	}
}

// bearerToken はAuthorizationヘッダーからトークン部分を取り出す。
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetIdentity はGinコンテキストからIdentityを取得する。
// AuthGateが適用されていない場合は匿名を返す。
func GetIdentity(c *gin.Context) identity.Identity {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return identity.Anonymous()
	}
	if id, ok := v.(identity.Identity); ok {
		return id
	}
	return identity.Anonymous()
}

// GetUserID はGinコンテキストから認証済みユーザーIDを取得する。
// 匿名の場合は空文字列を返す。
func GetUserID(c *gin.Context) string {
	return GetIdentity(c).UserID
}
