package urls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"domain and path by default", "http://site.com/path#fragment?q=query", "site.com/path"},
		{"drops www prefix and scheme", "http://www.site.com", "site.com"},
		{"panda3d topics keep topic id", "http://panda3d.org/viewtopic.php?f=1&t=2", "panda3d.org/viewtopic.php?t=2"},
		{"panda3d forums keep forum id", "http://panda3d.org/viewforum.php?f=1", "panda3d.org/viewforum.php?f=1"},
		{"panda3d screenshots keep shot name", "http://panda3d.org/showss.php?shot=path/to/photo&otherparam=1", "panda3d.org/showss.php?shot=path/to/photo"},
		{"youtube keeps video id", "http://youtube.com/watch?v=DRR9fOXkfRE", "youtube.com/watch?v=DRR9fOXkfRE"},
		{"google groups topic keeps fragment", "http://groups.google.com/forum/#!topic/keras-users/epFdzcxl8Gg", "groups.google.com/forum/!topic/keras-users/epFdzcxl8Gg"},
		{"google groups forum keeps fragment", "http://groups.google.com/forum/#!forum/keras-users", "groups.google.com/forum/!forum/keras-users"},
		{"google groups search collapsed", "http://groups.google.com/forum/#!searchin/keras-users/model", "groups.google.com/forum/!searchin"},
		{"tigsource keeps topic id", "http://forums.tigsource.com/index.php?topic=100.0", "forums.tigsource.com/index.php?topic=100.0"},
		{"tigsource keeps board id", "http://forums.tigsource.com/index.php?board=20.0", "forums.tigsource.com/index.php?board=20.0"},
		{"tigsource keeps search action", "http://forums.tigsource.com/index.php?action=search2;params=PARAMS", "forums.tigsource.com/index.php?action=search2"},
		{"experiment site reduced to domain", "http://searchlogger.tutorons.com/long/path#with-fragment", "searchlogger.tutorons.com"},
		{"browser pages", "about:preferences", "browser_page"},
		{"yahoo redirect collapsed", "http://r.search.yahoo.com/_ylt=AwrTccsomething", "r.search.yahoo.com/_ylt=redirect"},
		{"stack overflow question reduced to id", "http://stackoverflow.com/questions/1000/long-name", "stackoverflow.com/questions/1000"},
		{"view source prefix kept", "view-source:http://site.com", "view-source:site.com"},
		{"bluejeans reduced to domain", "http://bluejeans.com/long-path#some-fragment", "bluejeans.com"},
		{"unlisted query dropped", "https://docs.site.com/page?utm_source=x", "docs.site.com/page"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonicalize(tc.url))
			assert.Equal(t, tc.want, Canonicalize(tc.want), "canonical keys map to themselves")
		})
	}
}

func TestCanonicalize_SchemelessInput(t *testing.T) {
	assert.Equal(t, "panda3d.org/viewtopic.php?t=2", Canonicalize("panda3d.org/viewtopic.php?t=2"))
	assert.Equal(t, "youtube.com/watch?v=abc", Canonicalize("www.youtube.com/watch?v=abc&list=x"))
	assert.Equal(t, "forums.tigsource.com/index.php?topic=100.0", Canonicalize("forums.tigsource.com/index.php?topic=100.0"))
	assert.Equal(t, "stackoverflow.com/questions/1000", Canonicalize("stackoverflow.com/questions/1000"))
}

func TestCanonicalize_UnparseableURLReturnedUnchanged(t *testing.T) {
	assert.Equal(t, "http://[::1", Canonicalize("http://[::1"))
}

func TestFilterQuery(t *testing.T) {
	assert.Equal(t, "t=2", filterQuery("f=1&t=2", []string{"t"}))
	assert.Equal(t, "topic=1&board=2", filterQuery("topic=1;x=3&board=2", []string{"board", "topic"}))
	assert.Empty(t, filterQuery("", []string{"v"}))
}
