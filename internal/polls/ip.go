package polls

// VotedCookieName returns the name of the anti-revote cookie scoped to
// one poll's public link.
func VotedCookieName(publicLink string) string {
	return "voted_" + publicLink
}
