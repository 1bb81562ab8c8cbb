package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pocket-tcg/api/internal/catalog"
	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/images"
	"github.com/pocket-tcg/api/internal/view"
)

type rootOptions struct {
	catalogFile  string
	imageBaseURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Inspect the card catalog and resolve wishlist views",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.catalogFile, "catalog", "", "YAML catalog file (defaults to the embedded catalog)")
	root.PersistentFlags().StringVar(&opts.imageBaseURL, "image-base-url", images.DefaultBaseURL, "base URL for card artwork")

	root.AddCommand(newOptionsCmd(opts), newImageCmd(opts), newResolveCmd(opts))
	return root
}

func newOptionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print filter options and catalog size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cards, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				catalog.Options
				PageSize  int `json:"pageSize"`
				CardCount int `json:"cardCount"`
			}{catalog.FilterOptions(), view.PageSize, cards.Len()})
		},
	}
}

func newImageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "image SET NUMBER",
		Short: "Print the artwork URL for a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[1])
			if err != nil || number <= 0 {
				return fmt.Errorf("invalid card number %q", args[1])
			}
			ref := domain.CardRef{Set: strings.TrimSpace(args[0]), Number: number}
			cards, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			if !cards.Contains(ref) {
				return fmt.Errorf("card %s is not in the catalog", ref.Key())
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), images.NewResolver(opts.imageBaseURL).URL(ref))
			return err
		},
	}
}

type resolveFlags struct {
	view           string
	friendName     string
	set            string
	rarity         string
	cardType       string
	page           int
	wishlist       string
	friendWishlist string
}

type resolvedCard struct {
	Set        string           `json:"set"`
	Number     int              `json:"number"`
	Name       string           `json:"name,omitempty"`
	Rarity     string           `json:"rarity"`
	Type       string           `json:"type"`
	ImageURL   string           `json:"imageUrl"`
	Wishlisted bool             `json:"wishlisted"`
	OnClick    view.ClickAction `json:"onClick"`
}

type resolvedView struct {
	View          domain.ViewMode `json:"view"`
	Title         string          `json:"title"`
	Filters       domain.Filters  `json:"filters"`
	Page          int             `json:"page"`
	Total         int             `json:"total"`
	NumberOfPages int             `json:"numberOfPages"`
	HasPrevPage   bool            `json:"hasPrevPage"`
	HasNextPage   bool            `json:"hasNextPage"`
	Label         string          `json:"label"`
	Cards         []resolvedCard  `json:"cards"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	flags := &resolveFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one page of a view from local wishlist files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := domain.ParseViewMode(flags.view)
			if err != nil {
				return fmt.Errorf("unknown view %q", flags.view)
			}
			if flags.page < 1 {
				return errors.New("page must be 1 or greater")
			}
			if mode == domain.ViewFriendWishlist && flags.friendWishlist == "" {
				return errors.New("--friend-wishlist is required for the friend view")
			}
			cards, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			own, err := readWishlistFile(flags.wishlist)
			if err != nil {
				return err
			}
			friend, err := readWishlistFile(flags.friendWishlist)
			if err != nil {
				return err
			}

			result := view.Resolve(cards.Cards(), view.Request{
				Mode: mode,
				Filters: domain.Filters{
					Set:    strings.TrimSpace(flags.set),
					Rarity: strings.TrimSpace(flags.rarity),
					Type:   strings.TrimSpace(flags.cardType),
				},
				Page:   flags.page,
				Own:    own,
				Friend: friend,
			})
			return writeJSON(cmd.OutOrStdout(), toResolvedView(result, flags.friendName, images.NewResolver(opts.imageBaseURL)))
		},
	}
	cmd.Flags().StringVar(&flags.view, "view", "all", "view: all, wishlist, friends or friend")
	cmd.Flags().StringVar(&flags.friendName, "friend-name", "", "display name used in the friend view title")
	cmd.Flags().StringVar(&flags.set, "set", "", "set code filter")
	cmd.Flags().StringVar(&flags.rarity, "rarity", "", "rarity filter")
	cmd.Flags().StringVar(&flags.cardType, "type", "", "type filter (prefix match)")
	cmd.Flags().IntVar(&flags.page, "page", 1, "1-based page number")
	cmd.Flags().StringVar(&flags.wishlist, "wishlist", "", "YAML list of {set, number} for the signed-in user")
	cmd.Flags().StringVar(&flags.friendWishlist, "friend-wishlist", "", "YAML list of {set, number} for the selected friend")
	return cmd
}

func toResolvedView(result view.Result, friendName string, imgs *images.Resolver) resolvedView {
	out := resolvedView{
		View:          result.Mode,
		Title:         view.Title(result.Mode, friendName),
		Filters:       result.Filters,
		Page:          result.Page,
		Total:         result.Total,
		NumberOfPages: result.NumberOfPages,
		HasPrevPage:   result.HasPrevPage,
		HasNextPage:   result.HasNextPage,
		Label:         result.Label(),
		Cards:         make([]resolvedCard, 0, len(result.Cards)),
	}
	for _, cv := range result.Cards {
		out.Cards = append(out.Cards, resolvedCard{
			Set:        cv.Card.Set,
			Number:     cv.Card.Number,
			Name:       cv.Card.Name,
			Rarity:     cv.Card.Rarity,
			Type:       cv.Card.Type,
			ImageURL:   imgs.URL(cv.Card.Ref()),
			Wishlisted: cv.Wishlisted,
			OnClick:    cv.OnClick,
		})
	}
	return out
}

func (o *rootOptions) loadCatalog() (*catalog.Catalog, error) {
	if o.catalogFile == "" {
		return catalog.Default(), nil
	}
	f, err := os.Open(o.catalogFile)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return catalog.Load(f)
}

// readWishlistFile reads a YAML list of card references. An empty path or empty file is an empty
// wishlist.
func readWishlistFile(path string) ([]domain.CardRef, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wishlist: %w", err)
	}
	defer f.Close()

	var entries []domain.CardRef
	if err := yaml.NewDecoder(f).Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode wishlist %s: %w", path, err)
	}
	return entries, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
