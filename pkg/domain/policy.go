package domain

// Tag names with schema meaning.
const (
	TagType         = "type"
	TagChromB37     = "chrom-b37"
	TagPosB37       = "pos-b37"
	TagRefAlleleB37 = "ref-allele-b37"
	TagVarAlleleB37 = "var-allele-b37"
)

// TagPolicy declares, for one record kind, which tags are special (immutable
// once set) and which are required at creation.
type TagPolicy struct {
	Kind     EntityType
	Special  []string
	Required []string
}

// IsSpecial reports whether tag is special for the policy's kind.
func (p TagPolicy) IsSpecial(tag string) bool {
	for _, s := range p.Special {
		if s == tag {
			return true
		}
	}
	return false
}

// VariantPolicy protects the tags that form the b37 composite key. They are
// also required so every stored variant has a derivable b37 identifier.
var VariantPolicy = TagPolicy{
	Kind:     EntityVariant,
	Special:  []string{TagChromB37, TagPosB37, TagRefAlleleB37, TagVarAlleleB37},
	Required: []string{TagChromB37, TagPosB37, TagRefAlleleB37, TagVarAlleleB37},
}

// RelationPolicy protects and requires the relation type.
var RelationPolicy = TagPolicy{
	Kind:     EntityRelation,
	Special:  []string{TagType},
	Required: []string{TagType},
}

// PolicyFor returns the static policy for kind.
func PolicyFor(kind EntityType) (TagPolicy, bool) {
	switch kind {
	case EntityVariant:
		return VariantPolicy, true
	case EntityRelation:
		return RelationPolicy, true
	default:
		return TagPolicy{}, false
	}
}
