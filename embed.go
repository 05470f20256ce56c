package chatwidget

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the widget. Pages hold the full
// widget document, partials hold the transcript entries pushed over server-sent events.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded script and stylesheet the widget markup loads.
//
//go:embed static/*
var StaticFS embed.FS
