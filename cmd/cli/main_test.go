package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"alfredoptarigan/idoneidad-checker/internal/config"
	"alfredoptarigan/idoneidad-checker/internal/services"
	"alfredoptarigan/idoneidad-checker/internal/testutil"
)

type stubModel struct {
	response string
	prompts  []*services.Prompt
}

func (s *stubModel) Generate(ctx context.Context, prompt *services.Prompt) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, nil
}

func (s *stubModel) GenerateWithRetry(ctx context.Context, prompt *services.Prompt, maxAttempts int) (string, error) {
	return s.Generate(ctx, prompt)
}

type cliFixture struct {
	cli    *cli
	model  *stubModel
	out    *bytes.Buffer
	keys   []string
	dir    string
	inputs string
}

func newCLIFixture(t *testing.T, response, apiKey, stdin string) *cliFixture {
	t.Helper()
	f := &cliFixture{
		model:  &stubModel{response: response},
		out:    &bytes.Buffer{},
		dir:    t.TempDir(),
		inputs: t.TempDir(),
	}
	cfg := &config.Config{Gemini: config.GeminiConfig{
		APIKey:       apiKey,
		ResponseMode: config.ModeMarkdown,
		MaxAttempts:  1,
	}}
	f.cli = &cli{
		cfg: cfg,
		in:  strings.NewReader(stdin),
		out: f.out,
		newModel: func(ctx context.Context, opts services.GeminiOptions) (services.ModelClient, error) {
			f.keys = append(f.keys, opts.APIKey)
			return f.model, nil
		},
	}
	return f
}

func (f *cliFixture) file(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(f.inputs, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunMarkdown(t *testing.T) {
	f := newCLIFixture(t, "El candidato es APTO.", "key-123", "")
	req := f.file(t, "perfil.pdf", testutil.MinimalPDF("Ingeniero Electricista"))
	ev := f.file(t, "diploma.pdf", testutil.MinimalPDF("Diploma"))

	err := f.cli.run(context.Background(), []string{
		"--name", "Ana Perez", "--id", "1075",
		"--requirements-pdf", req, "--evidence", ev,
		"--out-dir", f.dir, "--html",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"key-123"}, f.keys)
	require.Len(t, f.model.prompts, 1)
	assert.Contains(t, f.model.prompts[0].Text(), "Ingeniero Electricista")
	assert.Contains(t, f.model.prompts[0].Text(), "Diploma")

	md, err := os.ReadFile(filepath.Join(f.dir, "IDONEIDAD_Ana_Perez.md"))
	require.NoError(t, err)
	assert.Equal(t, "El candidato es APTO.", string(md))

	html, err := os.ReadFile(filepath.Join(f.dir, "IDONEIDAD_Ana_Perez.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "El candidato es APTO.")

	_, err = os.Stat(filepath.Join(f.dir, "IDONEIDAD_Ana_Perez.xlsx"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, f.out.String(), "Concepto: APTO")
}

func TestRunStructuredWritesWorkbook(t *testing.T) {
	response := `{"nombre": "Ana Perez", "cedula": "1075", "concepto_final": "NO CUMPLE",
		"idoneidad_texto": "CONCLUSIÓN: NO CUMPLE.", "formacion_texto": "Tecnóloga",
		"experiencia_lista": [{"empresa": "SENA", "fecha_inicio": "01/02/2021", "fecha_fin": "30/06/2021", "meses": 5, "dias": 0, "validada": "SI"}]}`
	f := newCLIFixture(t, response, "key-123", "")
	ev := f.file(t, "certificado.pdf", testutil.MinimalPDF("Certificado SENA"))

	err := f.cli.run(context.Background(), []string{
		"-r", "Tecnólogo con 6 meses", "-e", ev, "-m", "structured", "-o", f.dir,
	})
	require.NoError(t, err)

	wb, err := excelize.OpenFile(filepath.Join(f.dir, "IDONEIDAD_Ana_Perez.xlsx"))
	require.NoError(t, err)
	defer wb.Close()
	sheet := wb.GetSheetName(wb.GetActiveSheetIndex())
	v, err := wb.GetCellValue(sheet, "D21")
	require.NoError(t, err)
	assert.Equal(t, "SENA", v)

	md, err := os.ReadFile(filepath.Join(f.dir, "IDONEIDAD_Ana_Perez.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "NO CUMPLE")
	assert.Contains(t, f.out.String(), "Concepto: NO CUMPLE")
}

func TestRunAsksForMissingKey(t *testing.T) {
	f := newCLIFixture(t, "APTO", "", "typed-key\n")
	ev := f.file(t, "diploma.pdf", testutil.MinimalPDF("Diploma"))

	require.NoError(t, f.cli.run(context.Background(), []string{"-r", "req", "-e", ev, "-o", f.dir}))
	assert.Equal(t, []string{"typed-key"}, f.keys)
	assert.Contains(t, f.out.String(), "Ingresa tu Google API Key: ")
}

func TestRunRejectsEmptyInputBeforeModel(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "no evidence", args: []string{"-r", "req"}, want: services.ErrMissingEvidence},
		{name: "no requirements", args: []string{"-e", "placeholder"}, want: services.ErrMissingRequirements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLIFixture(t, "APTO", "", "")
			args := tt.args
			if args[0] == "-e" {
				args = []string{"-e", f.file(t, "diploma.pdf", testutil.MinimalPDF("Diploma"))}
			}

			err := f.cli.run(context.Background(), args)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.keys)
			assert.Empty(t, f.model.prompts)
			assert.Empty(t, f.out.String())
		})
	}
}

func TestRunMissingKey(t *testing.T) {
	f := newCLIFixture(t, "APTO", "", "\n")
	ev := f.file(t, "diploma.pdf", testutil.MinimalPDF("Diploma"))

	err := f.cli.run(context.Background(), []string{"-r", "req", "-e", ev})
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.Empty(t, f.model.prompts)
}

func TestParseOptions(t *testing.T) {
	cfg := &config.Config{Gemini: config.GeminiConfig{ResponseMode: config.ModeStructured}}

	opts, err := parseOptions([]string{"-e", "a.pdf", "--evidence", "b.png"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.png"}, opts.evidence)
	assert.Equal(t, "structured", opts.mode)
	assert.Equal(t, ".", opts.outDir)

	_, err = parseOptions([]string{"--mode", "xml"}, cfg)
	assert.Error(t, err)

	_, err = parseOptions([]string{"--unknown"}, cfg)
	assert.Error(t, err)
}

func TestWriteTemplate(t *testing.T) {
	f := newCLIFixture(t, "", "", "")
	path := filepath.Join(f.dir, "plantilla.xlsx")

	require.NoError(t, f.cli.run(context.Background(), []string{"--write-template", path}))

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()
	v, err := wb.GetCellValue("IDONEIDAD", "D6")
	require.NoError(t, err)
	assert.Equal(t, "NOMBRE:", v)
}

func TestReadFilesMissing(t *testing.T) {
	_, err := readFiles([]string{filepath.Join(t.TempDir(), "nope.pdf")})
	assert.Error(t, err)
}
