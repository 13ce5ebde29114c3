package confirmation

// DetermineTokenType picks the token type for a change request. Only one
// field is expected per request; when several are set the priority is
// username, then password, then email.
func DetermineTokenType(req UpdateRequest) TokenType {
	switch {
	case req.Username != "":
		return UsernameChange
	case req.Password != "":
		return PasswordChange
	case req.Email != "":
		return EmailChangeOld
	default:
		return Unknown
	}
}

// ValidateTokenTypeForRequest reports whether an endpoint may redeem t.
// Registration endpoints accept only RegistrationConfirmation; every other
// confirmation endpoint accepts all issuable types except it.
func ValidateTokenTypeForRequest(t TokenType, isRegistrationFlow bool) bool {
	if isRegistrationFlow {
		return t == RegistrationConfirmation
	}
	return t.Issuable() && t != RegistrationConfirmation
}
