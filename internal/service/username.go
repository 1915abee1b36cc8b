package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/bwmarrin/snowflake"
)

const maxUsernameAttempts = 5

var (
	usernameAdjectives = []string{
		"brave", "calm", "clever", "eager", "gentle", "happy", "jolly", "kind",
		"lively", "lucky", "merry", "nimble", "proud", "quick", "quiet", "swift",
		"bold", "bright", "witty", "zesty",
	}
	usernameColors = []string{
		"amber", "azure", "coral", "crimson", "golden", "green", "indigo", "ivory",
		"jade", "lilac", "maroon", "olive", "orange", "pink", "plum", "ruby",
		"silver", "teal", "violet", "white",
	}
	usernameAnimals = []string{
		"badger", "bear", "crane", "dolphin", "eagle", "falcon", "fox", "gecko",
		"heron", "ibis", "koala", "lemur", "lynx", "otter", "owl", "panda",
		"raven", "seal", "tiger", "wolf",
	}
)

// UsernameChecker reports whether a username is taken.
type UsernameChecker interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// UsernameGenerator produces adjective-color-animal names and falls back to
// a snowflake id after maxUsernameAttempts collisions.
type UsernameGenerator struct {
	node *snowflake.Node
	pick func(words []string) (string, error)
}

func NewUsernameGenerator(nodeID int64) (*UsernameGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &UsernameGenerator{node: node, pick: pickWord}, nil
}

func (g *UsernameGenerator) Generate(ctx context.Context, checker UsernameChecker) (string, error) {
	for i := 0; i < maxUsernameAttempts; i++ {
		candidate, err := g.candidate()
		if err != nil {
			return "", err
		}
		taken, err := checker.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return g.Fallback(), nil
}

// Fallback is unique per node without a lookup.
func (g *UsernameGenerator) Fallback() string {
	return "user-" + g.node.Generate().Base36()
}

func (g *UsernameGenerator) candidate() (string, error) {
	adjective, err := g.pick(usernameAdjectives)
	if err != nil {
		return "", err
	}
	color, err := g.pick(usernameColors)
	if err != nil {
		return "", err
	}
	animal, err := g.pick(usernameAnimals)
	if err != nil {
		return "", err
	}
	suffix, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s-%03d", adjective, color, animal, suffix.Int64()), nil
}

func pickWord(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[n.Int64()], nil
}
