// Package cognito implements stockroom.IdentityProvider on top of an AWS
// Cognito user pool app client.
//
// The provider only uses the public (unauthenticated) user pool API: sign up,
// confirmation, USER_PASSWORD_AUTH and REFRESH_TOKEN_AUTH flows, password
// reset, GetUser and GlobalSignOut. When the app client has a secret, every
// call carries the SECRET_HASH Cognito expects.
package cognito
