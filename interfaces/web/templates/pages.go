// Package templates renders the run report pages.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"provflow/interfaces/web/presenters"
	"provflow/interfaces/web/templates/components/core"
)

var esc = templ.EscapeString[string]

// pageWriter keeps the first write error and turns later writes into no-ops.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *pageWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *pageWriter) badge(status string) {
	p.printf(`<span class="px-2 py-0.5 rounded text-xs %s">%s</span>`, core.StatusClass(status), esc(status))
}

// Layout wraps body in the shared page chrome.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := &pageWriter{w: w}
		pw.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s · provflow</title>`+
			`<script src="https://cdn.tailwindcss.com"></script></head>`+
			`<body class="bg-slate-50 text-slate-900"><header class="bg-white border-b px-6 py-3">`+
			`<a href="/runs" class="font-semibold">provflow runs</a></header><main class="p-6">`, esc(title))
		if pw.err != nil {
			return pw.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		pw.raw(`</main></body></html>`)
		return pw.err
	})
}

// RunList renders the list of runs.
func RunList(vm *presenters.RunListVM) templ.Component {
	return Layout("Runs", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		pw := &pageWriter{w: w}
		pw.printf(`<h1 class="text-xl mb-4">Runs (%d)</h1>`, vm.Total)
		if len(vm.Runs) == 0 {
			pw.raw(`<p class="text-slate-500">No runs recorded yet.</p>`)
			return pw.err
		}
		pw.raw(`<table class="w-full bg-white border"><thead><tr class="text-left text-sm text-slate-500">` +
			`<th class="p-2">Run</th><th class="p-2">Status</th><th class="p-2">Started</th><th class="p-2">Duration</th></tr></thead><tbody>`)
		for _, r := range vm.Runs {
			pw.printf(`<tr class="border-t"><td class="p-2"><a class="text-blue-700" href="%s">%s</a><div class="text-xs text-slate-400">%s</div></td><td class="p-2">`,
				esc(r.DetailPath), esc(r.Name), esc(r.ID))
			pw.badge(r.Status)
			pw.printf(`</td><td class="p-2">%s</td><td class="p-2">%s</td></tr>`, esc(r.StartedAt), esc(r.Duration))
		}
		pw.raw(`</tbody></table>`)
		return pw.err
	}))
}

// RunDetail renders one run with its steps, context values and attachments.
func RunDetail(vm *presenters.RunDetailVM) templ.Component {
	return Layout(vm.Name, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		pw := &pageWriter{w: w}
		pw.printf(`<h1 class="text-xl mb-1">%s `, esc(vm.Name))
		pw.badge(vm.Status)
		pw.printf(`</h1><p class="text-sm text-slate-500 mb-4">%s · started %s · %s · %d passed, %d failed, %d skipped</p>`,
			esc(vm.ID), esc(vm.StartedAt), esc(vm.Duration), vm.Passed, vm.Failed, vm.Skipped)

		pw.raw(`<table class="w-full bg-white border mb-6"><tbody>`)
		for _, s := range vm.Steps {
			pw.printf(`<tr class="border-t %s"><td class="p-2 w-8">%d</td><td class="p-2">%s`, core.RowClass(s.Status, s.Warning), s.Number, esc(s.Name))
			if s.Error != "" {
				pw.printf(`<div class="text-xs text-red-700">%s</div>`, esc(s.Error))
			}
			if s.Warning != "" {
				pw.printf(`<div class="text-xs text-amber-700">%s</div>`, esc(s.Warning))
			}
			for _, kv := range s.Data {
				pw.printf(`<div class="text-xs text-slate-500">%s: %s</div>`, esc(kv.Key), esc(kv.Value))
			}
			pw.raw(`</td><td class="p-2">`)
			pw.badge(s.Status)
			pw.printf(`</td><td class="p-2 text-sm">%s</td></tr>`, esc(s.Duration))
		}
		pw.raw(`</tbody></table>`)

		if len(vm.Context) > 0 {
			pw.raw(`<h2 class="font-semibold mb-2">Context</h2><dl class="grid grid-cols-2 gap-1 text-sm mb-6">`)
			for _, kv := range vm.Context {
				pw.printf(`<dt class="text-slate-500">%s</dt><dd>%s</dd>`, esc(kv.Key), esc(kv.Value))
			}
			pw.raw(`</dl>`)
		}

		if len(vm.Attachments) > 0 {
			pw.raw(`<h2 class="font-semibold mb-2">Attachments</h2><ul class="text-sm">`)
			for _, a := range vm.Attachments {
				pw.printf(`<li><a class="text-blue-700" href="%s">%s</a> <span class="text-slate-400">%s</span>`, esc(a.Path), esc(a.Name), esc(a.Size))
				if a.IsImage {
					pw.printf(`<img class="max-w-xl border mt-1" src="%s" alt="%s">`, esc(a.Path), esc(a.Name))
				}
				pw.raw(`</li>`)
			}
			pw.raw(`</ul>`)
		}
		return pw.err
	}))
}
