package domain

import (
	"sort"
	"strings"
)

// FieldTags is the only top-level field an update may carry.
const FieldTags = "tags"

// ValidateUpdateShape checks that exactly the tags field was submitted.
func ValidateUpdateShape(fields []string) error {
	if len(fields) == 1 && fields[0] == FieldTags {
		return nil
	}
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	e := newErrorf(CodeInvalidUpdateShape,
		"Edits should include the 'tags' field, and only this field. Your request is attempting to edit the following fields: [%s]",
		strings.Join(sorted, ", "))
	e.Fields = sorted
	return e
}

// ValidateUpdate enforces the safe-update contract and returns the resulting
// tag bag. With partial set the submitted tags are merged into existing;
// otherwise they replace it. Special tags present on existing must survive a
// full update, and no update may change a special tag's value.
func ValidateUpdate(existing Tags, fields []string, submitted Tags, partial bool, policy TagPolicy) (Tags, error) {
	if err := ValidateUpdateShape(fields); err != nil {
		return nil, err
	}
	if !partial {
		for _, tag := range policy.Special {
			if existing.Has(tag) && !submitted.Has(tag) {
				e := newErrorf(CodeMissingSpecialTag,
					"PUT requests must retain all special tags. Your request is missing the tag: %s", tag)
				e.Tag = tag
				return nil, e
			}
		}
	}
	for _, tag := range policy.Special {
		old, had := existing.Get(tag)
		next, has := submitted.Get(tag)
		if had && has && old != next {
			e := newErrorf(CodeSpecialTagValueChanged,
				"Updates (PUT or PATCH) must not attempt to change the values for special tags. Your request attempts to change the value for tag '%s' from '%s' to '%s'",
				tag, old, next)
			e.Tag, e.OldValue, e.NewValue = tag, old, next
			return nil, e
		}
	}
	result := existing.Clone()
	if partial {
		result.Merge(submitted)
	} else {
		result.SetAll(submitted)
	}
	return result, nil
}

// ValidateCreate fails when any required tag is absent, listing the full required set.
func ValidateCreate(submitted Tags, policy TagPolicy) error {
	for _, tag := range policy.Required {
		if !submitted.Has(tag) {
			e := newErrorf(CodeMissingRequiredTag,
				"Create (POST) tag data must include all required tags: [%s]", strings.Join(policy.Required, ", "))
			e.Tag = tag
			e.Required = append([]string(nil), policy.Required...)
			return e
		}
	}
	return nil
}

// ValidateDelete compares the client's claimed version with the current one.
// A nil submitted version means the request omitted edited_version.
func ValidateDelete(current int64, submitted *int64) error {
	if submitted == nil {
		return newError(CodeMissingVersionParameter,
			"Delete submissions to the API must include a parameter 'edited_version' that reports the version ID of the item being deleted.")
	}
	if *submitted != current {
		e := newError(CodeEditConflict,
			"Edit conflict error! The current version for this object does not match the reported version being deleted.")
		e.CurrentVersion = current
		return e
	}
	return nil
}
