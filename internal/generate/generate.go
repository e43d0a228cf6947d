package generate

import (
	"github.com/IlyaGulya/remnawave-modulegen/internal/descriptor"
	"github.com/IlyaGulya/remnawave-modulegen/internal/discovery"
	"github.com/IlyaGulya/remnawave-modulegen/internal/openapi"
)

// Run executes the generation pipeline: parse the OpenAPI document, classify
// the endpoints per controller, analyze each resource's schemas, and resolve
// the override configuration into the final descriptor set. Pure: identical
// inputs yield byte-for-byte identical descriptors.
func Run(specData []byte, cfg descriptor.OverrideConfig) ([]descriptor.ModuleDescriptor, error) {
	doc, err := openapi.Parse(specData)
	if err != nil {
		return nil, err
	}

	var analyses []*discovery.Analysis
	for _, group := range discovery.GroupByTag(doc) {
		// Excluded controllers are never classified, so spec irregularities in
		// resources the operator opted out of cannot abort the run.
		if !cfg.Includes(group.Tag) {
			continue
		}
		if err := discovery.Classify(group); err != nil {
			return nil, err
		}
		if !group.HasCreate() {
			// Read-only resources produce no manager.
			continue
		}
		analysis, err := discovery.Analyze(group)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}

	return descriptor.Resolve(analyses, cfg), nil
}
