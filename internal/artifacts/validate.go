package artifacts

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/forPelevin/vodclips/internal/types"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names so errors match the persisted documents.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate checks struct tags and returns a single readable error.
func Validate(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s%s", fe.Namespace(), fe.Tag(), param(fe.Param())))
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}

func param(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// checkAnalysis applies the cross-field rules tags cannot express.
func checkAnalysis(a types.AnalysisResult) error {
	if err := Validate(a); err != nil {
		return err
	}
	if a.TopSegmentsCount != len(a.TopSegments) {
		return fmt.Errorf("top_segments=%d but %d segments listed", a.TopSegmentsCount, len(a.TopSegments))
	}
	if a.TopSegmentsCount > a.FilteredSegments {
		return fmt.Errorf("top_segments=%d exceeds filtered_segments=%d", a.TopSegmentsCount, a.FilteredSegments)
	}
	for i := 1; i < len(a.TopSegments); i++ {
		if a.TopSegments[i].Score() > a.TopSegments[i-1].Score() {
			return fmt.Errorf("segments not in descending composite order at position %d", i)
		}
	}
	return nil
}

func checkManifest(m types.ClipManifest) error {
	if err := Validate(m); err != nil {
		return err
	}
	if m.ClipsCount != len(m.Clips) {
		return fmt.Errorf("clips_count=%d but %d clips listed", m.ClipsCount, len(m.Clips))
	}
	for i, c := range m.Clips {
		if c.ClipIndex != i {
			return fmt.Errorf("clip at position %d has clip_index %d", i, c.ClipIndex)
		}
	}
	return nil
}
