// Package notify contiene el notificador de consola: el dashboard del
// scanner como tablas formateadas y el playback simulado de ejecución.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out       io.Writer
	table     bool
	stepDelay time.Duration
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, stepDelay: 800 * time.Millisecond}
}

// NewConsoleWriter crea un notificador para tests, sin delay entre los
// pasos del playback.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime el resultado del scan en el modo configurado.
func (c *Console) Notify(_ context.Context, metrics domain.ScanMetrics, opportunities []domain.Opportunity) error {
	if len(opportunities) == 0 {
		fmt.Fprintf(c.out, "[%s] %d mercados escaneados — sin oportunidades\n",
			time.Now().Format("15:04:05"), metrics.MarketsScanned)
		return nil
	}

	if c.table {
		c.printFull(metrics, opportunities)
	} else {
		c.printCompact(metrics, opportunities)
	}
	return nil
}

// printCompact imprime lo esencial en una línea por scan.
func (c *Console) printCompact(metrics domain.ScanMetrics, opps []domain.Opportunity) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts → %d opps  $%.2f  red:%s",
		now, metrics.MarketsScanned, metrics.OpportunitiesFound,
		metrics.PotentialProfit, metrics.NetworkStatus)

	shown := 0
	for _, opp := range opps {
		if shown >= 4 {
			break
		}
		fmt.Fprintf(&sb, " | %s %s→%s %.2f%% $%.2f %s",
			opp.TokenSymbol, opp.BuyVenue, opp.SellVenue,
			opp.SpreadPct, opp.Analysis.NetProfit, opp.Analysis.Action)
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime las métricas agregadas y la tabla de oportunidades.
func (c *Console) printFull(metrics domain.ScanMetrics, opps []domain.Opportunity) {
	now := time.Now().Format("15:04:05")

	fmt.Fprintf(c.out, "\n[%s] %d oportunidades — %d mercados, %d venues, red %s",
		now, len(opps), metrics.MarketsScanned, metrics.VenuesScanned, metrics.NetworkStatus)
	if metrics.GasPriceGwei > 0 {
		fmt.Fprintf(c.out, ", gas %d gwei", metrics.GasPriceGwei)
	}
	fmt.Fprintf(c.out, "\n")

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Token", "Buy", "Sell", "Spread", "Net$", "Conf", "Risk", "Action")

	for i, opp := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			opp.TokenSymbol,
			fmt.Sprintf("%s $%s", opp.BuyVenue, priceLabel(opp.BuyPrice)),
			fmt.Sprintf("%s $%s", opp.SellVenue, priceLabel(opp.SellPrice)),
			fmt.Sprintf("%.2f%%", opp.SpreadPct),
			fmt.Sprintf("$%.2f", opp.Analysis.NetProfit),
			fmt.Sprintf("%.0f", opp.Analysis.Confidence),
			string(opp.Analysis.Risk),
			string(opp.Analysis.Action),
		)
	}

	table.Render()

	fmt.Fprintf(c.out, "  Net$ = ganancia tras costes ($%.2f potencial total)\n", metrics.PotentialProfit)
	fmt.Fprintln(c.out, "  Action: SNIPE(conf≥70 y net≥$50) > HOLD > IGNORE")
}

// PrintExecutionPlan reproduce el playback simulado de ejecución de una
// oportunidad, paso a paso. Es puramente ilustrativo: no toca fondos ni
// firma nada.
func (c *Console) PrintExecutionPlan(ctx context.Context, opp domain.Opportunity) {
	steps := []string{
		"Inicializando contrato de flash loan...",
		fmt.Sprintf("Pidiendo prestado %.2f %s del pool de Aave V3...", opp.Amount, opp.TokenSymbol),
		fmt.Sprintf("Ejecutando orden de compra en %s @ $%s...", opp.BuyVenue, priceLabel(opp.BuyPrice)),
		"Bridgeando activos vía LayerZero...",
		fmt.Sprintf("Ejecutando orden de venta en %s @ $%s...", opp.SellVenue, priceLabel(opp.SellPrice)),
		"Devolviendo flash loan + 0.09% de fee...",
		"Verificando finality de la transacción...",
		fmt.Sprintf("PROFIT ASEGURADO: $%.2f", opp.Analysis.NetProfit),
	}

	fmt.Fprintf(c.out, "\n=== EJECUCIÓN SIMULADA — %s %s→%s ===\n",
		opp.TokenSymbol, opp.BuyVenue, opp.SellVenue)

	for i, step := range steps {
		if c.stepDelay > 0 {
			select {
			case <-time.After(c.stepDelay):
			case <-ctx.Done():
				fmt.Fprintln(c.out, "  playback interrumpido")
				return
			}
		}
		marker := ">>"
		if i == len(steps)-1 {
			marker = "OK"
		}
		fmt.Fprintf(c.out, "  [%s] %s\n", marker, step)
	}
	fmt.Fprintln(c.out)
}

// priceLabel formatea un precio con los decimales que su magnitud pide:
// dos para majors, más para tokens de precio microscópico.
func priceLabel(p float64) string {
	switch {
	case p >= 1:
		return fmt.Sprintf("%.2f", p)
	case p >= 0.01:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.8f", p)
	}
}
