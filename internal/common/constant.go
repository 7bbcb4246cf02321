package common

// RefreshTokenCookieName is the cookie that carries the opaque refresh token
// between the HTTP layer and browsers.
const RefreshTokenCookieName = "refreshToken"

// OpaqueTokenSize is the number of random bytes behind refresh, verification
// and reset tokens.
const OpaqueTokenSize = 64
