package urls

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	browserPageKey   = "browser_page"
	viewSourcePrefix = "view-source:"
)

// queryAllowlist lists the query parameters that identify a page on sites
// whose paths alone are ambiguous, keyed by host and then by path.
var queryAllowlist = map[string]map[string][]string{
	"panda3d.org": {
		"/viewtopic.php": {"t"},
		"/viewforum.php": {"f"},
		"/showss.php":    {"shot"},
	},
	"youtube.com": {
		"/watch": {"v"},
	},
	"forums.tigsource.com": {
		"/index.php": {"topic", "board", "action"},
	},
}

// hostOnly lists sites whose every page is equivalent for analysis.
var hostOnly = []string{
	"searchlogger.tutorons.com",
	"bluejeans.com",
}

var (
	stackOverflowQuestion = regexp.MustCompile(`^/questions/(\d+)`)
	groupsFragment        = regexp.MustCompile(`^!(topic|forum)/`)
)

// Canonicalize reduces rawURL to the key used to decide whether two
// participants visited the same page. Scheme, "www." and most query and
// fragment data are dropped; a few known sites keep the parameters that
// identify their pages. Unparseable URLs are returned unchanged.
//
// Input without a scheme is read as host plus path, so canonical keys map to
// themselves.
func Canonicalize(rawURL string) string {
	if strings.HasPrefix(rawURL, viewSourcePrefix) {
		return viewSourcePrefix + Canonicalize(strings.TrimPrefix(rawURL, viewSourcePrefix))
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Scheme == "" && u.Host == "" && !strings.HasPrefix(rawURL, "/") {
		if withHost, err := url.Parse("//" + rawURL); err == nil {
			u = withHost
		}
	}
	if u.Scheme == "about" {
		return browserPageKey
	}

	host := strings.TrimPrefix(u.Host, "www.")

	for _, h := range hostOnly {
		if host == h || strings.HasSuffix(host, "."+h) {
			return h
		}
	}

	switch {
	case host == "stackoverflow.com":
		if m := stackOverflowQuestion.FindStringSubmatch(u.Path); m != nil {
			return host + "/questions/" + m[1]
		}
	case host == "r.search.yahoo.com":
		if strings.HasPrefix(u.Path, "/_ylt=") {
			return host + "/_ylt=redirect"
		}
	case host == "groups.google.com":
		if groupsFragment.MatchString(u.Fragment) {
			return host + u.Path + u.Fragment
		}
		if strings.HasPrefix(u.Fragment, "!searchin") {
			return host + u.Path + "!searchin"
		}
	}

	key := host + u.Path
	if paths, ok := queryAllowlist[host]; ok {
		if keep, ok := paths[u.Path]; ok {
			if q := filterQuery(u.RawQuery, keep); q != "" {
				key += "?" + q
			}
		}
	}
	return key
}

// filterQuery keeps the raw key=value pairs of rawQuery whose key is in keep,
// in their original order. Both "&" and ";" separate pairs, and values are
// kept exactly as written.
func filterQuery(rawQuery string, keep []string) string {
	pairs := strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' || r == ';' })
	var kept []string
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		for _, k := range keep {
			if key == k {
				kept = append(kept, pair)
				break
			}
		}
	}
	return strings.Join(kept, "&")
}
