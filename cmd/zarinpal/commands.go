package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	merchantID  string
	accessToken string
	sandbox     bool
	baseURL     string
	timeout     time.Duration
	verbose     bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "zarinpal",
		Short:         "Talk to the ZarinPal payment gateway from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.merchantID, "merchant", os.Getenv("ZARINPAL_MERCHANT_ID"), "Merchant ID (env ZARINPAL_MERCHANT_ID)")
	flags.StringVar(&g.accessToken, "token", os.Getenv("ZARINPAL_ACCESS_TOKEN"), "Access token for transactions and refunds (env ZARINPAL_ACCESS_TOKEN)")
	flags.BoolVar(&g.sandbox, "sandbox", false, "Use the sandbox gateway")
	flags.StringVar(&g.baseURL, "base-url", "", "Override the gateway host")
	flags.DurationVar(&g.timeout, "timeout", 30*time.Second, "Request timeout")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Log gateway calls to stderr")

	root.AddCommand(requestCmd(g))
	root.AddCommand(verifyCmd(g))
	root.AddCommand(inquiryCmd(g))
	root.AddCommand(unverifiedCmd(g))
	root.AddCommand(reverseCmd(g))
	root.AddCommand(transactionsCmd(g))
	root.AddCommand(refundCmd(g))

	return root
}

func (g *globalFlags) client() *zarinpal.Client {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []zarinpal.Option{
		zarinpal.WithTimeout(g.timeout),
		zarinpal.WithLogger(logger),
	}
	if g.baseURL != "" {
		opts = append(opts, zarinpal.WithBaseURL(g.baseURL))
	}

	return zarinpal.NewClient(zarinpal.Config{
		MerchantID:  g.merchantID,
		Sandbox:     g.sandbox,
		AccessToken: g.accessToken,
	}, opts...)
}

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func optional(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// parseWage reads "IBAN AMOUNT DESCRIPTION"; the description may contain spaces.
func parseWage(raw string) (string, int64, string, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), " ", 3)
	if len(parts) != 3 {
		return "", 0, "", fmt.Errorf("wage %q: want \"IBAN AMOUNT DESCRIPTION\"", raw)
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", fmt.Errorf("wage %q: invalid amount: %w", raw, err)
	}
	return parts[0], amount, parts[2], nil
}

func requestCmd(g *globalFlags) *cobra.Command {
	var (
		amount      int64
		description string
		callbackURL string
		wages       []string
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Open a payment session and print its StartPay URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := zarinpal.NewCreatePaymentBuilder().
				Amount(amount).
				Description(description).
				Callback(callbackURL).
				Metadata(optional(cmd, "mobile"), optional(cmd, "email")).
				Currency(optional(cmd, "currency")).
				CardPan(optional(cmd, "card-pan")).
				Referrer(optional(cmd, "referrer"))

			for _, raw := range wages {
				iban, share, desc, err := parseWage(raw)
				if err != nil {
					return err
				}
				b.Wage(iban, share, desc)
			}

			client := g.client()
			resp, err := client.CreatePayment(cmd.Context(), b.Build())
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), struct {
				*zarinpal.CreatePaymentResponse
				PaymentURL string `json:"payment_url"`
			}{resp, client.StartPayURL(resp.Authority)})
		},
	}

	cmd.Flags().Int64VarP(&amount, "amount", "a", 0, "Amount to charge")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Shown to the customer on the payment page")
	cmd.Flags().StringVar(&callbackURL, "callback", "", "Where the gateway redirects the customer afterwards")
	cmd.Flags().String("mobile", "", "Customer mobile number")
	cmd.Flags().String("email", "", "Customer email")
	cmd.Flags().String("currency", "", "IRR or IRT")
	cmd.Flags().String("card-pan", "", "Restrict payment to this card")
	cmd.Flags().String("referrer", "", "Referrer ID")
	cmd.Flags().StringArrayVar(&wages, "wage", nil, "Split as \"IBAN AMOUNT DESCRIPTION\"; repeatable")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("callback")

	return cmd
}

func verifyCmd(g *globalFlags) *cobra.Command {
	var amount int64

	cmd := &cobra.Command{
		Use:   "verify [authority]",
		Short: "Settle a paid session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := g.client().Verify(cmd.Context(), zarinpal.VerifyRequest{
				Authority: args[0],
				Amount:    amount,
			})
			if err != nil {
				return err
			}
			if resp.AlreadyVerified() {
				fmt.Fprintln(cmd.ErrOrStderr(), "note: session was already verified")
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().Int64VarP(&amount, "amount", "a", 0, "Amount the session was opened with")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func inquiryCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inquiry [authority]",
		Short: "Show the gateway status of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := g.client().Inquiry(cmd.Context(), zarinpal.InquiryRequest{Authority: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func unverifiedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unverified",
		Short: "List paid sessions that were never verified",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := g.client().UnVerified(cmd.Context(), zarinpal.UnVerifiedRequest{})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func reverseCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reverse [authority]",
		Short: "Return a verified payment to the customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := g.client().Reverse(cmd.Context(), zarinpal.ReverseRequest{Authority: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func transactionsCmd(g *globalFlags) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "transactions [terminal-id]",
		Short: "List the sessions of a terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := zarinpal.TransactionsRequest{
				TerminalID: args[0],
				Filter:     optional(cmd, "filter"),
			}
			if cmd.Flags().Changed("limit") {
				req.Limit = &limit
			}
			if cmd.Flags().Changed("offset") {
				req.Offset = &offset
			}

			sessions, err := g.client().Transactions(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sessions)
		},
	}

	cmd.Flags().String("filter", "", "PAID, VERIFIED, TRASH, ACTIVE or REFUNDED")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum sessions")
	cmd.Flags().IntVar(&offset, "offset", 0, "Sessions to skip")

	return cmd
}

func refundCmd(g *globalFlags) *cobra.Command {
	var amount int64

	cmd := &cobra.Command{
		Use:   "refund [session-id]",
		Short: "Refund part or all of a paid session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount <= 0 {
				return errors.New("--amount must be positive")
			}

			resp, err := g.client().Refund(cmd.Context(), zarinpal.RefundRequest{
				SessionID:   args[0],
				Amount:      amount,
				Description: optional(cmd, "description"),
				Method:      optional(cmd, "method"),
				Reason:      optional(cmd, "reason"),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().Int64VarP(&amount, "amount", "a", 0, "Amount to refund")
	cmd.Flags().StringP("description", "d", "", "Refund note")
	cmd.Flags().String("method", "", "PAYA or CARD")
	cmd.Flags().String("reason", "", "CUSTOMER_REQUEST, DUPLICATE_TRANSACTION, SUSPICIOUS_TRANSACTION or OTHER")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
