package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/nsxctl/pkg/cli"
	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// refFlags are the object selectors shared by every action of a resource.
type refFlags struct {
	kind   objects.Kind
	name   string
	id     string
	parent string
}

func (f *refFlags) ref() objects.Ref {
	return objects.Ref{Kind: f.kind.Name, Parent: f.parent, Name: f.name, ID: f.id}
}

// label names the selected object for messages, id first.
func (f *refFlags) label() string {
	if f.id != "" {
		return f.id
	}
	return f.name
}

// requireName fails unless --name was given.
func (f *refFlags) requireName() error {
	return requireFlag("name", f.name)
}

// requireNameOrID fails unless --name or --id was given.
func (f *refFlags) requireNameOrID() error {
	if f.name == "" && f.id == "" {
		return util.NewValidationError("required: --name or --id")
	}
	return nil
}

// requireParent fails unless the parent selector was given.
func (f *refFlags) requireParent() error {
	if !f.kind.HasParent() {
		return nil
	}
	return requireFlag(f.kind.Parent, f.parent)
}

// resourceCmds and resourceRefs are keyed by kind name. They are built
// during variable initialization so that every init can extend them.
var resourceCmds, resourceRefs = buildResourceCmds()

func buildResourceCmds() (map[string]*cobra.Command, map[string]*refFlags) {
	cmds := map[string]*cobra.Command{}
	refs := map[string]*refFlags{}
	for _, k := range objects.Kinds() {
		cmds[k.Name], refs[k.Name] = newResourceCmd(k)
	}
	return cmds, refs
}

// resourceCmd returns the noun command and selectors of a kind.
func resourceCmd(kind string) (*cobra.Command, *refFlags) {
	return resourceCmds[kind], resourceRefs[kind]
}

// resourceCommands returns the resource commands in kind order.
func resourceCommands() []*cobra.Command {
	var cmds []*cobra.Command
	for _, name := range objects.KindNames() {
		cmds = append(cmds, resourceCmds[name])
	}
	return cmds
}

// resourceGroup places a kind in the help listing.
func resourceGroup(kind string) string {
	switch {
	case strings.HasPrefix(kind, "lb"):
		return "lb"
	case util.ContainsString([]string{"domain", "group", "service", "policy", "rule", "vm", "role", "cert"}, kind):
		return "security"
	case util.ContainsString([]string{"site", "enforce", "tnprofile"}, kind):
		return "system"
	default:
		return "network"
	}
}

// newResourceCmd builds the noun command of a kind with its common actions.
func newResourceCmd(k objects.Kind) (*cobra.Command, *refFlags) {
	f := &refFlags{kind: k}

	cmd := &cobra.Command{
		Use:     k.Name,
		Short:   fmt.Sprintf("Manage %s", plural(k.Label)),
		GroupID: resourceGroup(k.Name),
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.name, "name", "", fmt.Sprintf("%s name", k.Label))
	pf.StringVar(&f.id, "id", "", fmt.Sprintf("%s id (takes precedence over --name)", k.Label))
	if k.HasParent() {
		parent, _ := objects.LookupKind(k.Parent)
		pf.StringVar(&f.parent, k.Parent, "", fmt.Sprintf("Containing %s name", parent.Label))
	}

	var brief bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", plural(k.Label)),
		Long: fmt.Sprintf("List every %s, following pagination to the end.%s", k.Label,
			parentNote(k)),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				listing, err := m.List(ctx, f.ref())
				if err != nil {
					return err
				}
				if brief {
					return app.printer.BriefListing(listing, k.MatchField)
				}
				return app.printer.Listing(listing)
			})
		},
	}
	listCmd.Flags().BoolVar(&brief, "brief", false, "Print name, id and path only")

	findCmd := &cobra.Command{
		Use:   "find",
		Short: fmt.Sprintf("Show a %s by name or id", k.Label),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.requireNameOrID(); err != nil {
				return err
			}
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				rec, err := m.Find(ctx, f.ref())
				if err != nil {
					return err
				}
				return app.printer.Record(rec)
			})
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: fmt.Sprintf("Print the policy path of a %s", k.Label),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.requireNameOrID(); err != nil {
				return err
			}
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				path, err := m.Path(ctx, f.ref())
				if err != nil {
					return err
				}
				fmt.Fprintln(app.out, path)
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: fmt.Sprintf("Delete a %s", k.Label),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.requireNameOrID(); err != nil {
				return err
			}
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				err := m.Delete(ctx, f.ref())
				if err != nil {
					return err
				}
				if app.Safe() {
					return app.printResult(nil)
				}
				fmt.Fprintf(app.out, "Deleted %s %s\n", k.Label, cli.Bold(f.label()))
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, findCmd, pathCmd, deleteCmd)
	if !k.Manager {
		cmd.AddCommand(newRealizationCmd(f))
	}
	return cmd, f
}

func parentNote(k objects.Kind) string {
	if !k.HasParent() {
		return ""
	}
	parent, _ := objects.LookupKind(k.Parent)
	return fmt.Sprintf("\n\nWithout --%s, the %s of every %s are listed.", k.Parent, plural(k.Label), parent.Label)
}

func plural(label string) string {
	if strings.HasSuffix(label, "y") {
		return strings.TrimSuffix(label, "y") + "ies"
	}
	return label + "s"
}

// newRealizationCmd reports how an intent object was realized.
func newRealizationCmd(f *refFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realization",
		Short: fmt.Sprintf("Show the realization of a %s", f.kind.Label),
	}
	entitiesCmd := &cobra.Command{
		Use:   "entities",
		Short: "List the realized entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.requireNameOrID(); err != nil {
				return err
			}
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				rec, err := m.RealizedEntities(ctx, f.ref())
				if err != nil {
					return err
				}
				return app.printer.Record(rec)
			})
		},
	}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the consolidated realization status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.requireNameOrID(); err != nil {
				return err
			}
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				rec, err := m.RealizationStatus(ctx, f.ref())
				if err != nil {
					return err
				}
				if app.printer.Format == cli.FormatTable {
					state := rec.Child("consolidated_status").String("consolidated_status")
					if state != "" {
						fmt.Fprintf(app.out, "%s %s\n", cli.DotPad(f.kind.Label+" "+f.label(), 40), cli.Status(state))
						return nil
					}
				}
				return app.printer.Record(rec)
			})
		},
	}
	cmd.AddCommand(entitiesCmd, statusCmd)
	return cmd
}
