package auth

import (
	"hire-chat/contract"
	"hire-chat/domain/chat"
)

// TokenResolver is the Principal Resolver: the identity of a connection is the
// user id of the JWT it presented when it was opened.
type TokenResolver struct {
	secret []byte
}

func NewTokenResolver(secret []byte) TokenResolver {
	return TokenResolver{secret: secret}
}

// IdentityOf returns false for anonymous connections and for tokens that are
// no longer valid, expired ones included.
func (r TokenResolver) IdentityOf(conn contract.Connection) (chat.UserID, bool) {
	token := conn.Token()
	if token == "" {
		return "", false
	}
	claims, err := ValidateToken(r.secret, token)
	if err != nil {
		return "", false
	}
	return chat.UserID(claims.UserID), true
}
