package sonar

import "net/url"

// ProfileURL links to a quality profile page.
func ProfileURL(baseURL, organization, name, language string) string {
	path := "/profiles/show"
	if organization != "" {
		path = "/organizations/" + url.PathEscape(organization) + "/quality_profiles/show"
	}
	q := url.Values{"name": {name}, "language": {language}}
	return baseURL + path + "?" + q.Encode()
}

// RuleURL links to a rule page.
func RuleURL(baseURL, organization, key string) string {
	path := "/coding_rules"
	if organization != "" {
		path = "/organizations/" + url.PathEscape(organization) + "/rules"
	}
	q := url.Values{"open": {key}, "rule_key": {key}}
	return baseURL + path + "?" + q.Encode()
}

// ProfileURL links to a profile on the client's server.
func (c *Client) ProfileURL(name, language string) string {
	return ProfileURL(c.baseURL, c.organization, name, language)
}

// RuleURL links to a rule on the client's server.
func (c *Client) RuleURL(key string) string {
	return RuleURL(c.baseURL, c.organization, key)
}
