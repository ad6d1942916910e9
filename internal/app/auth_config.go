package app

import (
	iauth "github.com/mdaccula/postcontrol/internal/auth"
)

// JWTServiceConfig converts the auth section into the JWT service's config.
func (a AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	return iauth.JWTConfig{
		Secret:         a.JWT.Secret,
		Issuer:         a.JWT.Issuer,
		AccessTokenTTL: a.JWT.TTL,
	}
}
