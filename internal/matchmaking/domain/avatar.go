package domain

import (
	"fmt"
	"math/rand"
)

var avatarAdjectives = []string{
	"Velvet", "Scarlet", "Gilded", "Mellow", "Dapper", "Breezy",
	"Cobalt", "Amber", "Misty", "Plucky", "Quirky", "Sunny",
}

var avatarNouns = []string{
	"Fox", "Heron", "Otter", "Lynx", "Magpie", "Ibis",
	"Dahlia", "Juniper", "Willow", "Clover", "Marigold", "Poppy",
}

// NewAvatarName generates a display alias for a participant.
// Aliases are decorative and collisions are acceptable.
func NewAvatarName() string {
	adjective := avatarAdjectives[rand.Intn(len(avatarAdjectives))]
	noun := avatarNouns[rand.Intn(len(avatarNouns))]
	return fmt.Sprintf("%s %s %02d", adjective, noun, rand.Intn(100))
}
