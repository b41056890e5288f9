package jwttoken

import (
	authmw "warish/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *authmw.StaffClaims {
	return &authmw.StaffClaims{
		StaffID: claims.Subject,
		Name:    claims.Name,
	}
}

// JWTServiceAdapter lets the auth middleware validate tokens without
// importing golang-jwt.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.StaffClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
