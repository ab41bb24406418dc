package value

import (
	"encoding/json"
	"sort"
)

// BenefitTag — непрозрачная метка привилегии держателя карты
// (уровень карты, членство, скидочная программа).
type BenefitTag string

func (t BenefitTag) String() string {
	return string(t)
}

// BenefitSet — множество привилегий.
type BenefitSet map[BenefitTag]struct{}

func NewBenefitSet(tags ...BenefitTag) BenefitSet {
	set := make(BenefitSet, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}

	return set
}

func (s BenefitSet) Has(tag BenefitTag) bool {
	_, ok := s[tag]
	return ok
}

// Covers сообщает, покрывает ли множество все требуемые привилегии
// (required ⊆ s). Пустое required покрывается всегда.
func (s BenefitSet) Covers(required BenefitSet) bool {
	for tag := range required {
		if _, ok := s[tag]; !ok {
			return false
		}
	}

	return true
}

func (s BenefitSet) Clone() BenefitSet {
	clone := make(BenefitSet, len(s))
	for tag := range s {
		clone[tag] = struct{}{}
	}

	return clone
}

// MarshalJSON сериализует множество как отсортированный массив меток.
func (s BenefitSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Tags())
}

func (s *BenefitSet) UnmarshalJSON(data []byte) error {
	var tags []BenefitTag
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}

	*s = NewBenefitSet(tags...)

	return nil
}

// Tags возвращает отсортированный список меток (для детерминированной
// сериализации и логов).
func (s BenefitSet) Tags() []BenefitTag {
	tags := make([]BenefitTag, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	return tags
}
