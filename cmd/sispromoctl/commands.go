package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sispromo/sispromo/internal/apiclient"
	"github.com/sispromo/sispromo/internal/domain/brand"
	"github.com/sispromo/sispromo/internal/domain/promoterbrand"
	"github.com/sispromo/sispromo/internal/domain/store"
	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/domain/visitprice"
)

func (c *CLI) newLoginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username|email>",
		Short: "Sign in and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = c.readPassword(); err != nil {
					return err
				}
			}
			api, err := c.api()
			if err != nil {
				return err
			}
			u, err := api.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "logged in as %s (%s)\n", u.Username, u.Role)
			if u.MustChangePassword {
				fmt.Fprintln(c.errOut, "password change required before other calls are accepted")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func (c *CLI) readPassword() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.errOut, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.errOut)
		return string(b), err
	}
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password given")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *CLI) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear local tokens and cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			return api.Logout(cmd.Context())
		},
	}
}

func (c *CLI) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			u, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(u, apiclient.Meta{})
		},
	}
}

func (c *CLI) newStoresCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stores", Short: "List and manage stores"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stores",
		Args:  cobra.NoArgs,
	}
	force := forceFlag(list)
	list.RunE = func(cmd *cobra.Command, _ []string) error {
		api, err := c.api()
		if err != nil {
			return err
		}
		stores, meta, err := api.ListStores(cmd.Context(), *force)
		if err != nil {
			return err
		}
		return c.print(stores, meta)
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			s, meta, err := api.GetStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(s, meta)
		},
	}

	var req store.CreateRequest
	var number int
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("number") {
				req.Number = &number
			}
			api, err := c.api()
			if err != nil {
				return err
			}
			s, err := api.CreateStore(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(s, apiclient.Meta{})
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "store name")
	create.Flags().IntVar(&number, "number", 0, "store number")
	create.Flags().StringVar(&req.City, "city", "", "city")
	create.Flags().StringVar(&req.District, "district", "", "district")
	create.Flags().StringVar(&req.State, "state", "", "UF code, e.g. SP")
	create.Flags().StringVar(&req.CNPJ, "cnpj", "", "CNPJ, digits or formatted")

	cmd.AddCommand(list, get, create, c.deleteCmd("store", (*apiclient.Client).DeleteStore))
	return cmd
}

func (c *CLI) newBrandsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "brands", Short: "List and manage brands and their stores"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List brand/store links",
		Args:  cobra.NoArgs,
	}
	force := forceFlag(list)
	list.RunE = func(cmd *cobra.Command, _ []string) error {
		api, err := c.api()
		if err != nil {
			return err
		}
		rows, meta, err := api.ListBrands(cmd.Context(), *force)
		if err != nil {
			return err
		}
		return c.print(rows, meta)
	}

	var req brand.CreateRequest
	link := &cobra.Command{
		Use:   "link",
		Short: "Create a brand if needed and link it to a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			b, err := api.CreateBrand(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(b, apiclient.Meta{})
		},
	}
	link.Flags().StringVar(&req.BrandName, "name", "", "brand name")
	link.Flags().StringVar(&req.StoreID, "store", "", "store ID")
	link.Flags().IntVar(&req.VisitFrequency, "frequency", 1, "visits per week")

	unlink := &cobra.Command{
		Use:   "unlink <brand-id> <store-id>",
		Short: "Remove a store from a brand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			return api.RemoveBrandStore(cmd.Context(), args[0], args[1])
		},
	}

	cmd.AddCommand(list, link, unlink, c.deleteCmd("brand", (*apiclient.Client).DeleteBrand))
	return cmd
}

func (c *CLI) newPromotersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "promoters", Short: "List and manage promoters"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List promoters",
		Args:  cobra.NoArgs,
	}
	force := forceFlag(list)
	list.RunE = func(cmd *cobra.Command, _ []string) error {
		api, err := c.api()
		if err != nil {
			return err
		}
		ps, meta, err := api.ListPromoters(cmd.Context(), *force)
		if err != nil {
			return err
		}
		return c.print(ps, meta)
	}
	cmd.AddCommand(list, c.deleteCmd("promoter", (*apiclient.Client).DeletePromoter))
	return cmd
}

func (c *CLI) newAssignmentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assignments", Short: "Brands assigned to promoters"}

	var f promoterbrand.Filter
	list := &cobra.Command{
		Use:   "list",
		Short: "List assignments",
		Args:  cobra.NoArgs,
	}
	force := forceFlag(list)
	list.Flags().StringVar(&f.PromoterID, "promoter", "", "promoter ID")
	list.Flags().StringVar(&f.BrandID, "brand", "", "brand ID")
	list.RunE = func(cmd *cobra.Command, _ []string) error {
		api, err := c.api()
		if err != nil {
			return err
		}
		as, meta, err := api.ListPromoterBrands(cmd.Context(), f, *force)
		if err != nil {
			return err
		}
		return c.print(as, meta)
	}

	var req promoterbrand.CreateRequest
	assign := &cobra.Command{
		Use:   "add",
		Short: "Assign a brand to a promoter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			a, err := api.AssignBrand(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(a, apiclient.Meta{})
		},
	}
	assign.Flags().StringVar(&req.PromoterID, "promoter", "", "promoter ID")
	assign.Flags().StringVar(&req.BrandID, "brand", "", "brand ID")

	cmd.AddCommand(list, assign, c.deleteCmd("assignment", (*apiclient.Client).UnassignBrand))
	return cmd
}

func (c *CLI) newVisitPricesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "visit-prices", Short: "Prices per store and brand"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List visit prices",
		Args:  cobra.NoArgs,
	}
	force := forceFlag(list)
	list.RunE = func(cmd *cobra.Command, _ []string) error {
		api, err := c.api()
		if err != nil {
			return err
		}
		ps, meta, err := api.ListVisitPrices(cmd.Context(), *force)
		if err != nil {
			return err
		}
		return c.print(ps, meta)
	}

	var req visitprice.CreateRequest
	set := &cobra.Command{
		Use:   "set",
		Short: "Price visits of a brand at a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			p, err := api.CreateVisitPrice(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(p, apiclient.Meta{})
		},
	}
	set.Flags().StringVar(&req.StoreID, "store", "", "store ID")
	set.Flags().StringVar(&req.BrandID, "brand", "", "brand ID")
	set.Flags().Float64Var(&req.Price, "price", 0, "price per visit")

	cmd.AddCommand(list, set, c.deleteCmd("visit price", (*apiclient.Client).DeleteVisitPrice))
	return cmd
}

// visitFilterFlags binds the shared visit filter flags on cmd.
type visitFilterFlags struct {
	promoter, store, brand, status, from, to string
	limit, offset                            int
}

func (v *visitFilterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.promoter, "promoter", "", "promoter ID")
	cmd.Flags().StringVar(&v.store, "store", "", "store ID")
	cmd.Flags().StringVar(&v.brand, "brand", "", "brand ID")
	cmd.Flags().StringVar(&v.status, "status", "", "status number or label")
	cmd.Flags().StringVar(&v.from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&v.to, "to", "", "last date, YYYY-MM-DD")
}

func (v *visitFilterFlags) filter() (visit.Filter, error) {
	f := visit.Filter{PromoterID: v.promoter, StoreID: v.store, BrandID: v.brand, Limit: v.limit, Offset: v.offset}
	if v.status != "" {
		st, err := visit.ParseStatus(v.status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	for _, d := range []struct {
		flag, val string
		dst       **time.Time
	}{{"from", v.from, &f.StartDate}, {"to", v.to, &f.EndDate}} {
		if d.val == "" {
			continue
		}
		t, err := visit.ParseDate(d.val)
		if err != nil {
			return f, fmt.Errorf("--%s must be YYYY-MM-DD", d.flag)
		}
		*d.dst = &t
	}
	return f, nil
}

func (c *CLI) newVisitsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "visits", Short: "Schedule, update and report visits"}

	var lf visitFilterFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List visits",
		Args:  cobra.NoArgs,
	}
	lf.bind(list)
	list.Flags().IntVar(&lf.limit, "limit", 0, "page size")
	list.Flags().IntVar(&lf.offset, "offset", 0, "rows to skip")
	listForce := forceFlag(list)
	list.RunE = func(cmd *cobra.Command, _ []string) error {
		f, err := lf.filter()
		if err != nil {
			return err
		}
		api, err := c.api()
		if err != nil {
			return err
		}
		vs, meta, err := api.ListVisits(cmd.Context(), f, *listForce)
		if err != nil {
			return err
		}
		return c.print(vs, meta)
	}

	var req visit.CreateRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Schedule a visit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			v, err := api.CreateVisit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(v, apiclient.Meta{})
		},
	}
	create.Flags().StringVar(&req.PromoterID, "promoter", "", "promoter ID (defaults to yourself for promoters)")
	create.Flags().StringVar(&req.StoreID, "store", "", "store ID")
	create.Flags().StringVar(&req.BrandID, "brand", "", "brand ID")
	create.Flags().StringVar(&req.VisitDate, "date", "", "visit date, YYYY-MM-DD")

	status := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a visit to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := visit.ParseStatus(args[1])
			if err != nil {
				return err
			}
			api, err := c.api()
			if err != nil {
				return err
			}
			v, err := api.SetVisitStatus(cmd.Context(), args[0], st)
			if err != nil {
				return err
			}
			return c.print(v, apiclient.Meta{})
		},
	}

	var rf visitFilterFlags
	report := &cobra.Command{
		Use:   "report",
		Short: "Priced visit report with totals",
		Args:  cobra.NoArgs,
	}
	rf.bind(report)
	reportForce := forceFlag(report)
	report.RunE = func(cmd *cobra.Command, _ []string) error {
		f, err := rf.filter()
		if err != nil {
			return err
		}
		api, err := c.api()
		if err != nil {
			return err
		}
		r, meta, err := api.VisitReport(cmd.Context(), f, *reportForce)
		if err != nil {
			return err
		}
		return c.print(r, meta)
	}

	var ef visitFilterFlags
	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Download the visit report as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ef.filter()
			if err != nil {
				return err
			}
			api, err := c.api()
			if err != nil {
				return err
			}
			data, err := api.ExportVisits(cmd.Context(), f)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = c.out.Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o644) //nolint:gosec // report meant to be shared
		},
	}
	ef.bind(export)
	export.Flags().StringVarP(&output, "output", "o", "", "file to write (stdout by default)")

	cmd.AddCommand(list, create, status, report, export, c.deleteCmd("visit", (*apiclient.Client).DeleteVisit))
	return cmd
}

func (c *CLI) newDashboardCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Visit progress for a date range (current week by default)",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	force := forceFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		api, err := c.api()
		if err != nil {
			return err
		}
		d, meta, err := api.Dashboard(cmd.Context(), from, to, *force)
		if err != nil {
			return err
		}
		return c.print(d, meta)
	}
	return cmd
}

func (c *CLI) newStatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List Brazilian states (UF codes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			states, meta, err := api.ListStates(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(states, meta)
		},
	}
}

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Manage the local response cache"}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear [path]",
		Short: "Drop cached responses, all or those under one path (e.g. /stores)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return api.Invalidate(cmd.Context(), "/"+strings.Trim(args[0], "/"))
			}
			return api.ClearCache(cmd.Context())
		},
	})
	return cmd
}

// deleteCmd builds "delete <id>" for a resource.
func (c *CLI) deleteCmd(noun string, del func(*apiclient.Client, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			if err := del(api, cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %s deleted\n", noun, strconv.Quote(args[0]))
			return nil
		},
	}
}
