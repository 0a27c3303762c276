package web

// pages.go renders the two HTML pages as templ components. The pages are
// thin shells: the dashboard table and chart load from the JSON API.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/ledger/internal/core"
)

// recentImportsOnDashboard is how many import attempts the dashboard lists.
const recentImportsOnDashboard = 10

// layout wraps body in the shared page chrome.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2328}
nav{background:#24292f;padding:.75rem 1.5rem}nav a{color:#fff;margin-right:1rem;text-decoration:none}
main{max-width:1100px;margin:1.5rem auto;padding:0 1rem}
table{border-collapse:collapse;width:100%%;background:#fff}th,td{border:1px solid #d0d7de;padding:.35rem .5rem;font-size:.9rem}
.err{color:#cf222e}.ok{color:#1a7f37}form>*{margin-right:.5rem}
</style>
</head>
<body>
<nav><a href="/">Ledger</a><a href="/upload">Import</a></nav>
<main>
`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</main>\n</body>\n</html>\n")
		return err
	})
}

// dashboardPage lists suppliers for filtering and the latest imports.
func dashboardPage(suppliers []string, imports []core.ImportBatch) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Inventory ledger</h1>
<form id="filters">
<input type="date" name="start_date"><input type="date" name="end_date">
<input name="sku" placeholder="SKU"><input name="product_name_like" placeholder="Product name">
<select name="supplier"><option value="">All suppliers</option>`)
		for _, s := range suppliers {
			fmt.Fprintf(&b, `<option value="%[1]s">%[1]s</option>`, templ.EscapeString(s))
		}
		b.WriteString(`</select><button type="submit">Filter</button>
</form>
<h2>Daily balance</h2>
<table id="chart"><thead><tr><th>Date</th><th>Total balance</th></tr></thead><tbody></tbody></table>
<h2>Entries</h2>
<table id="records"><thead><tr><th>Date</th><th>SKU</th><th>Product</th><th>In</th><th>Out</th><th>Balance</th><th>Supplier</th><th>Operator</th><th>Remarks</th></tr></thead><tbody></tbody></table>
<p id="paging"></p>
<h2>Recent imports</h2>
<table><thead><tr><th>Time</th><th>File</th><th>Status</th><th>Stage</th><th>Rows</th><th>Inserted</th></tr></thead><tbody>`)
		for _, imp := range imports {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>`,
				imp.CreatedAt.Format(core.TimestampLayout),
				templ.EscapeString(imp.FileName),
				templ.EscapeString(string(imp.Status)),
				templ.EscapeString(string(imp.Stage)),
				imp.RowCount, imp.Inserted)
		}
		b.WriteString(`</tbody></table>
<script>
const form = document.getElementById('filters');
const esc = v => v == null ? '' : String(v).replace(/[&<>"]/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
async function load(page) {
  const q = new URLSearchParams(new FormData(form));
  q.set('page', page || 1);
  const data = (await (await fetch('/api/data?' + q)).json()).data;
  document.querySelector('#records tbody').innerHTML = data.items.map(r =>
    '<tr>' + [r.date, r.sku, r.product_name, r.inbound_quantity, r.outbound_quantity,
      r.inventory_balance, r.supplier, r.operator, r.remarks].map(v => '<td>' + esc(v) + '</td>').join('') + '</tr>').join('');
  document.getElementById('paging').textContent = 'Page ' + data.page + ' of ' + data.pages + ' (' + data.total + ' entries)';
  const chart = (await (await fetch('/api/chart-data?' + q)).json()).data;
  document.querySelector('#chart tbody').innerHTML = chart.dates.map((d, i) =>
    '<tr><td>' + esc(d) + '</td><td>' + esc(chart.balances[i]) + '</td></tr>').join('');
}
form.addEventListener('submit', e => { e.preventDefault(); load(1); });
load(1);
</script>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// uploadPage posts a sheet to the import API and shows the outcome.
func uploadPage(maxFileSize int64, extensions []string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		accept := make([]string, len(extensions))
		for i, ext := range extensions {
			accept[i] = "." + ext
		}
		_, err := fmt.Fprintf(w, `<h1>Import ledger sheet</h1>
<p>Columns: %s. The first row is a header. Maximum size %d KiB.</p>
<form id="upload"><input type="file" name="file" accept="%s" required><button type="submit">Import</button></form>
<div id="result"></div>
<script>
const esc = v => String(v).replace(/[&<>"]/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
document.getElementById('upload').addEventListener('submit', async e => {
  e.preventDefault();
  const out = document.getElementById('result');
  out.textContent = 'Importing...';
  const resp = await fetch('/api/upload', {method: 'POST', body: new FormData(e.target)});
  const body = await resp.json();
  if (resp.ok) {
    out.innerHTML = '<p class="ok">' + esc(body.message) + '</p>';
    return;
  }
  out.innerHTML = '<p class="err">' + esc(body.message) + ' (' + esc(body.code) + '). ' + esc(body.action || '') + '</p>' +
    '<ul>' + (body.errors || []).map(d => '<li>' + esc(d) + '</li>').join('') + '</ul>';
});
</script>
`,
			templ.EscapeString(strings.Join(core.SheetHeaders, ", ")),
			maxFileSize>>10,
			templ.EscapeString(strings.Join(accept, ",")))
		return err
	})
}

// handleDashboard renders the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The page still renders when storage is unavailable.
	suppliers, err := s.service.ListSuppliers(ctx)
	if err != nil {
		slog.Warn("dashboard: list suppliers", "error", err)
	}
	imports, err := s.service.ListImports(ctx, recentImportsOnDashboard)
	if err != nil {
		slog.Warn("dashboard: list imports", "error", err)
	}

	s.render(w, r, layout("Inventory ledger", dashboardPage(suppliers, imports)))
}

// handleUploadPage renders the import form.
func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, layout("Import", uploadPage(s.cfg.Upload.MaxFileSize, s.cfg.Upload.AllowedExtensions)))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render page", "path", r.URL.Path, "error", err)
	}
}
