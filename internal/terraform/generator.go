// Package terraform renders audit findings as Terraform import blocks so idle
// resources can be adopted into state and destroyed through a normal plan.
package terraform

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/samber/lo"
	"github.com/zclconf/go-cty/cty"

	"github.com/finopsmind/costengine/internal/model"
)

// Resource types used in the generated plan.
const (
	ResourceInstance = "aws_instance"
	ResourceVolume   = "aws_ebs_volume"
	ResourceEIP      = "aws_eip"
)

// Import is a single import target.
type Import struct {
	ResourceType string `json:"resourceType"`
	Name         string `json:"name"`
	ID           string `json:"id"`
	Region       string `json:"region"`
}

// Address returns the Terraform resource address.
func (i Import) Address() string {
	return i.ResourceType + "." + i.Name
}

// Generator builds import plans from audit reports.
type Generator struct {
	validator *Validator
}

// NewGenerator creates a new generator.
func NewGenerator() *Generator {
	return &Generator{validator: NewValidator()}
}

// Imports lists the import targets of a report in a stable order.
func Imports(report *model.AuditReport) []Import {
	names := newNamer()
	var out []Import
	for _, inst := range report.StoppedInstances {
		out = append(out, Import{ResourceInstance, names.next("stopped", lo.CoalesceOrEmpty(inst.Name, inst.ID)), inst.ID, inst.Region})
	}
	for _, vol := range report.UnattachedVolumes {
		out = append(out, Import{ResourceVolume, names.next("unattached", vol.ID), vol.ID, vol.Region})
	}
	for _, ip := range report.UnassociatedIPs {
		out = append(out, Import{ResourceEIP, names.next("unassociated", ip.PublicIP), ip.AllocationID, ip.Region})
	}
	return out
}

// ImportPlan renders the findings of report as HCL. Each region gets an
// aliased aws provider block; every finding becomes an import block bound to
// its region's provider. The output is validated before it is returned.
func (g *Generator) ImportPlan(report *model.AuditReport) (string, error) {
	imports := Imports(report)

	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.AppendUnstructuredTokens(comment(fmt.Sprintf("Idle resources for profile %q, account %s, report %s.",
		report.ProfileName, report.AccountID, report.ID)))
	body.AppendUnstructuredTokens(comment("Generate configuration with: terraform plan -generate-config-out=idle.tf"))
	body.AppendNewline()

	regions := lo.Uniq(lo.Map(imports, func(i Import, _ int) string { return i.Region }))
	sort.Strings(regions)
	for _, region := range regions {
		provider := body.AppendNewBlock("provider", []string{"aws"}).Body()
		provider.SetAttributeValue("alias", cty.StringVal(alias(region)))
		provider.SetAttributeValue("region", cty.StringVal(region))
		body.AppendNewline()
	}

	for _, imp := range imports {
		block := body.AppendNewBlock("import", nil).Body()
		block.SetAttributeTraversal("to", hcl.Traversal{
			hcl.TraverseRoot{Name: imp.ResourceType},
			hcl.TraverseAttr{Name: imp.Name},
		})
		block.SetAttributeValue("id", cty.StringVal(imp.ID))
		block.SetAttributeTraversal("provider", hcl.Traversal{
			hcl.TraverseRoot{Name: "aws"},
			hcl.TraverseAttr{Name: alias(imp.Region)},
		})
		body.AppendNewline()
	}

	out, err := g.validator.ValidateAndFormat(string(f.Bytes()))
	if err != nil {
		return "", err
	}
	return out, nil
}

func comment(text string) hclwrite.Tokens {
	return hclwrite.Tokens{
		{Type: hclsyntax.TokenComment, Bytes: []byte("# " + text + "\n")},
	}
}
