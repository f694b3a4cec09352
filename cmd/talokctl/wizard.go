package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"talok/internal/app"
	"talok/internal/domain"
	"talok/internal/shared"
	"talok/internal/wizard"
)

func wizardCmd(cfg shared.Config) *cobra.Command {
	var (
		configPath string
		owner      string
	)
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Fill the property wizard in the terminal",
		Long: "Walks through the property wizard step by step and prints the resulting values as JSON.\n" +
			"With --owner the result is also stored as a draft property of that owner.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = cfg.WizardConfig
			}
			wizCfg, err := loadWizardConfig(configPath)
			if err != nil {
				return err
			}
			var ownerID uuid.UUID
			if owner != "" {
				if ownerID, err = uuid.Parse(owner); err != nil {
					return fmt.Errorf("--owner: %w", err)
				}
			}

			st, err := runWizard(cmd.Context(), wizCfg, surveyPrompter{out: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}

			result := map[string]any{"values": st.Values}
			if owner != "" {
				store, db, err := openStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				props := app.NewPropertyService(store, nil, 0, wizCfg, app.WithDBTimeout(cfg.DBTimeout))
				p, err := props.Create(cmd.Context(), domain.Identity{UserID: ownerID, Role: domain.RoleOwner}, app.PropertyInput{Values: st.Values})
				if err != nil {
					return fmt.Errorf("save draft: %w", err)
				}
				result["property_id"] = p.ID
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "wizard config file (default: WIZARD_CONFIG or built-in)")
	cmd.Flags().StringVar(&owner, "owner", "", "store the result as a draft of this owner id")
	return cmd
}

// runWizard asks every visible field step by step until the session submits.
// Fields are asked again when validation rejects them.
func runWizard(ctx context.Context, cfg *wizard.Config, p prompter) (wizard.State, error) {
	sess := wizard.NewSession(cfg, nil, wizard.State{UserID: "cli", SessionID: uuid.NewString()},
		wizard.WithSubmit(func(_ context.Context, st wizard.State) (wizard.State, error) { return st, nil }))

	asked := map[string]bool{}
	step := -1
	for {
		if err := ctx.Err(); err != nil {
			return wizard.State{}, err
		}
		view := sess.Current()
		if view.Index != step {
			step = view.Index
			p.Info(fmt.Sprintf("\n[%d/%d] %s", view.Position, view.Total, view.Title))
		}

		if w, ok := nextWidget(view, asked); ok {
			f, _ := cfg.Field(w.ID)
			v, err := ask(p, f, w)
			if err != nil {
				return wizard.State{}, err
			}
			asked[w.ID] = true
			live, err := sess.Update(map[string]any{w.ID: v})
			if err != nil {
				return wizard.State{}, err
			}
			if msgs := live.Fields[w.ID]; len(msgs) > 0 {
				p.Info("  ! " + strings.Join(msgs, ", "))
				delete(asked, w.ID)
			}
			continue
		}

		var err error
		if view.Last {
			err = sess.Submit(ctx)
		} else {
			_, err = sess.Next(ctx)
		}
		var verr *domain.ValidationError
		switch {
		case err == nil && view.Last:
			return sess.State(), nil
		case err == nil:
			continue
		case errors.As(err, &verr):
			ids := make([]string, 0, len(verr.Fields))
			for id := range verr.Fields {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				p.Info(fmt.Sprintf("  ! %s: %s", id, strings.Join(verr.Fields[id], ", ")))
				delete(asked, id)
			}
		default:
			return wizard.State{}, err
		}
	}
}

func nextWidget(view wizard.StepView, asked map[string]bool) (wizard.Widget, bool) {
	for _, w := range view.Widgets {
		if !asked[w.ID] {
			return w, true
		}
	}
	for _, s := range view.Sections {
		for _, w := range s.Widgets {
			if !asked[w.ID] {
				return w, true
			}
		}
	}
	return wizard.Widget{}, false
}

func label(w wizard.Widget) string {
	l := w.Label
	if w.Unit != "" {
		l += " (" + w.Unit + ")"
	}
	if w.Required {
		l += " *"
	}
	return l
}

func ask(p prompter, f *wizard.Field, w wizard.Widget) (any, error) {
	switch f.Kind {
	case wizard.KindBoolean:
		b, _ := w.Value.(bool)
		return p.Confirm(label(w), b)
	case wizard.KindSelect:
		opts := make([]string, 0, len(w.Options)+1)
		def := -1
		if !w.Required {
			opts = append(opts, "(aucun)")
		}
		offset := len(opts)
		for i, o := range w.Options {
			opts = append(opts, o.Label)
			if o.Selected {
				def = i + offset
			}
		}
		idx, err := p.Select(label(w), opts, def)
		if err != nil || idx < offset {
			return nil, err
		}
		return w.Options[idx-offset].Value, nil
	case wizard.KindCheckboxGroup:
		return multi(p, label(w), w.Options)
	case wizard.KindCheckboxGrid:
		out := map[string]any{}
		for _, row := range w.Grid {
			v, err := multi(p, label(w)+" / "+row.Label, row.Cells)
			if err != nil {
				return nil, err
			}
			if v != nil {
				out[row.Value] = v
			}
		}
		return out, nil
	}
	def := ""
	switch v := w.Value.(type) {
	case nil:
	case float64:
		def = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		def = fmt.Sprint(v)
	}
	return p.Input(label(w), def, w.Help)
}

func multi(p prompter, msg string, opts []wizard.OptionState) (any, error) {
	labels := make([]string, len(opts))
	var defs []int
	for i, o := range opts {
		labels[i] = o.Label
		if o.Selected {
			defs = append(defs, i)
		}
	}
	idx, err := p.MultiSelect(msg, labels, defs)
	if err != nil || len(idx) == 0 {
		return nil, err
	}
	out := make([]any, 0, len(idx))
	for _, i := range idx {
		out = append(out, opts[i].Value)
	}
	return out, nil
}
