package seed

import (
	"embed"
	"fmt"
	"os"

	"quadra/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/*.yml
var builtinFixtures embed.FS

// Fixture is a hand-written community: named profiles, posts, comments and
// who liked what. Authors and likers are referenced by username.
type Fixture struct {
	Profiles []FixtureProfile `yaml:"profiles"`
	Posts    []FixturePost    `yaml:"posts"`
}

type FixtureProfile struct {
	Name      string   `yaml:"name"`
	Username  string   `yaml:"username"`
	Bio       string   `yaml:"bio"`
	Gender    string   `yaml:"gender"`
	Positions []string `yaml:"positions"`
	AvatarURL string   `yaml:"avatar_url"`
}

type FixturePost struct {
	Author    string           `yaml:"author"`
	Title     string           `yaml:"title"`
	Content   string           `yaml:"content"`
	Topic     string           `yaml:"topic"`
	MediaURLs []string         `yaml:"media_urls"`
	Links     []string         `yaml:"links"`
	HoursAgo  int              `yaml:"hours_ago"`
	LikedBy   []string         `yaml:"liked_by"`
	Comments  []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author  string   `yaml:"author"`
	Content string   `yaml:"content"`
	LikedBy []string `yaml:"liked_by"`
}

// ParseFixture decodes and checks a YAML fixture.
func ParseFixture(raw []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixture reads a fixture from path. The name "community" loads the
// built-in one.
func LoadFixture(path string) (*Fixture, error) {
	var (
		raw []byte
		err error
	)
	if path == "community" {
		raw, err = builtinFixtures.ReadFile("fixtures/community.yml")
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return ParseFixture(raw)
}

func (fx *Fixture) validate() error {
	known := make(map[string]struct{}, len(fx.Profiles))
	for _, p := range fx.Profiles {
		if p.Username == "" || p.Name == "" {
			return fmt.Errorf("fixture profile needs name and username: %+v", p)
		}
		if _, dup := known[p.Username]; dup {
			return fmt.Errorf("fixture profile %q declared twice", p.Username)
		}
		if p.Gender != "" && !models.ValidGender(p.Gender) {
			return fmt.Errorf("fixture profile %q has unknown gender %q", p.Username, p.Gender)
		}
		for _, pos := range p.Positions {
			if !models.ValidPosition(pos) {
				return fmt.Errorf("fixture profile %q has unknown position %q", p.Username, pos)
			}
		}
		known[p.Username] = struct{}{}
	}

	check := func(where, username string) error {
		if _, ok := known[username]; !ok {
			return fmt.Errorf("%s references unknown profile %q", where, username)
		}
		return nil
	}
	for i, post := range fx.Posts {
		where := fmt.Sprintf("post %d (%q)", i, post.Title)
		if err := check(where, post.Author); err != nil {
			return err
		}
		if post.Topic != "" && !models.Topic(post.Topic).Valid() {
			return fmt.Errorf("%s has unknown topic %q", where, post.Topic)
		}
		for _, u := range post.LikedBy {
			if err := check(where+" like", u); err != nil {
				return err
			}
		}
		for _, c := range post.Comments {
			if err := check(where+" comment", c.Author); err != nil {
				return err
			}
			for _, u := range c.LikedBy {
				if err := check(where+" comment like", u); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
