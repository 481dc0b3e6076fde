package world

import (
	"fmt"
	"strings"
)

// Attributes are a character's innate scores, each in [0, 255].
//
// Ten is childlike, fifty a healthy but unskilled adult, two hundred a
// natural maximum, and anything above that supernatural.
type Attributes struct {
	// Senses
	Vision  uint8 `json:"vision" yaml:"vision"`
	Taste   uint8 `json:"taste" yaml:"taste"`
	Smell   uint8 `json:"smell" yaml:"smell"`
	Hearing uint8 `json:"hearing" yaml:"hearing"`
	Touch   uint8 `json:"touch" yaml:"touch"`
	// Physical
	Strength uint8 `json:"strength" yaml:"strength"`
	Speed    uint8 `json:"speed" yaml:"speed"`
	Agility  uint8 `json:"agility" yaml:"agility"`
	Stamina  uint8 `json:"stamina" yaml:"stamina"`
	Weight   uint8 `json:"weight" yaml:"weight"`
	Height   uint8 `json:"height" yaml:"height"`
	// Mental
	Memory   uint8 `json:"memory" yaml:"memory"`
	Analysis uint8 `json:"analysis" yaml:"analysis"`
	Emotions uint8 `json:"emotions" yaml:"emotions"`
	Focus    uint8 `json:"focus" yaml:"focus"`
	// Magical
	Magic uint8 `json:"magic" yaml:"magic"`
}

// Attribute names a single score.
type Attribute string

const (
	AttrVision   Attribute = "VISION"
	AttrTaste    Attribute = "TASTE"
	AttrSmell    Attribute = "SMELL"
	AttrHearing  Attribute = "HEARING"
	AttrTouch    Attribute = "TOUCH"
	AttrStrength Attribute = "STRENGTH"
	AttrSpeed    Attribute = "SPEED"
	AttrAgility  Attribute = "AGILITY"
	AttrStamina  Attribute = "STAMINA"
	AttrWeight   Attribute = "WEIGHT"
	AttrHeight   Attribute = "HEIGHT"
	AttrMemory   Attribute = "MEMORY"
	AttrAnalysis Attribute = "ANALYSIS"
	AttrEmotions Attribute = "EMOTIONS"
	AttrFocus    Attribute = "FOCUS"
	AttrMagic    Attribute = "MAGIC"
)

// ParseAttribute resolves an attribute name case-insensitively.
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := (Attributes{}).lookup(a); !ok {
		return "", fmt.Errorf("can't recognize %q as an attribute", s)
	}
	return a, nil
}

// Get returns the score of attr, or 0 for an unknown attribute.
func (a Attributes) Get(attr Attribute) uint8 {
	v, _ := a.lookup(attr)
	return v
}

func (a Attributes) lookup(attr Attribute) (uint8, bool) {
	switch attr {
	case AttrVision:
		return a.Vision, true
	case AttrTaste:
		return a.Taste, true
	case AttrSmell:
		return a.Smell, true
	case AttrHearing:
		return a.Hearing, true
	case AttrTouch:
		return a.Touch, true
	case AttrStrength:
		return a.Strength, true
	case AttrSpeed:
		return a.Speed, true
	case AttrAgility:
		return a.Agility, true
	case AttrStamina:
		return a.Stamina, true
	case AttrWeight:
		return a.Weight, true
	case AttrHeight:
		return a.Height, true
	case AttrMemory:
		return a.Memory, true
	case AttrAnalysis:
		return a.Analysis, true
	case AttrEmotions:
		return a.Emotions, true
	case AttrFocus:
		return a.Focus, true
	case AttrMagic:
		return a.Magic, true
	default:
		return 0, false
	}
}

// Ability returns the average of the skill's attributes plus its proficiency,
// capped at 255.
func (a Attributes) Ability(s Skill) uint8 {
	if len(s.Attributes) == 0 {
		return s.Proficiency
	}
	sum := 0
	for _, attr := range s.Attributes {
		sum += int(a.Get(attr))
	}
	return uint8(min(sum/len(s.Attributes)+int(s.Proficiency), 255))
}

// Skill is a learned ability rooted in one or more attributes.
type Skill struct {
	Name        string
	Attributes  []Attribute
	Proficiency uint8
}

// Outcome is the result of a skill attempt.
type Outcome int

const (
	CriticalFail Outcome = iota
	Fail
	Success
	CriticalSuccess
)

func (o Outcome) String() string {
	switch o {
	case CriticalFail:
		return "critical fail"
	case Fail:
		return "fail"
	case Success:
		return "success"
	default:
		return "critical success"
	}
}

// Attempt resolves the skill against a roll in [0, 255]. Low rolls succeed:
// 0 always succeeds critically and 255 always fails critically.
func (s Skill) Attempt(a Attributes, roll uint8) Outcome {
	switch roll {
	case 0:
		return CriticalSuccess
	case 255:
		return CriticalFail
	}
	if roll <= a.Ability(s) {
		return Success
	}
	return Fail
}

// MeleeSkill is the skill used to resolve melee attacks.
var MeleeSkill = Skill{
	Name:       "MELEE",
	Attributes: []Attribute{AttrStrength, AttrAgility, AttrSpeed},
}
