// Package printing renders the HTML-backed laboratory documents (results
// report and audit sheet) to PDF.
//
// This package contains:
//   - TemplateStore, which loads document templates from an external
//     directory or the embedded defaults
//   - TemplateEngine, a pure html/template compiler with the document
//     helper functions (dates, decimals, flags, captions)
//   - LocaleRegistry, the translated captions per language
//   - HTMLBackend, which pre-paginates a request, compiles its template and
//     prints the HTML with a PDFRenderer
//   - PDFRenderer implementations driving headless Chrome (chromedp) or the
//     wkhtmltopdf binary, cancellable per request
//   - PDFStorage and FileSystemStorage for the optional PDF archive
//
// Example usage:
//
//	renderer, err := NewChromedpRenderer(&ChromedpConfig{DefaultTimeout: 30 * time.Second})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer renderer.Close()
//
//	locales, _ := LoadLocales()
//	backend, err := NewHTMLBackend(HTMLBackendConfig{
//	    Store:    NewTemplateStore(nil),
//	    Renderer: renderer,
//	    Locales:  locales,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pdf, err := backend.Render(ctx, job)
package printing
