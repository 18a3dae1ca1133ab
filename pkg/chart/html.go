package chart

import (
	"bytes"
	"fmt"
	"html/template"
)

// htmlPageData holds data for the HTML template
type htmlPageData struct {
	Title string
	Code  string
}

// RenderHTML wraps rendered DSL in a standalone page that draws it in the
// browser with flowchart.js.
func RenderHTML(dsl, title string) (string, error) {
	if title == "" {
		title = "flowchart"
	}

	tmpl, err := template.New("flowchart").Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, htmlPageData{Title: title, Code: dsl}); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            margin: 0;
            padding: 20px;
            background: #f5f5f5;
        }
        .container {
            display: grid;
            grid-template-columns: 1fr 2fr;
            gap: 20px;
        }
        .card {
            background: white;
            border-radius: 8px;
            padding: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        textarea {
            width: 100%;
            height: 70vh;
            font-family: monospace;
            font-size: 13px;
            box-sizing: border-box;
        }
        #canvas {
            overflow: auto;
        }
        button {
            margin-top: 10px;
            padding: 6px 14px;
        }
    </style>
    <script src="https://cdnjs.cloudflare.com/ajax/libs/raphael/2.3.0/raphael.min.js"></script>
    <script src="https://cdnjs.cloudflare.com/ajax/libs/flowchart/1.17.1/flowchart.min.js"></script>
</head>
<body>
    <h1>{{.Title}}</h1>
    <div class="container">
        <div class="card">
            <textarea id="code">{{.Code}}</textarea>
            <button id="run" type="button">Render</button>
        </div>
        <div class="card" id="canvas"></div>
    </div>
    <script>
        var chart;
        function draw() {
            if (chart) {
                chart.clean();
            }
            chart = flowchart.parse(document.getElementById('code').value);
            chart.drawSVG('canvas', {
                'line-width': 2,
                'font-size': 14,
                'yes-text': 'yes',
                'no-text': 'no',
                'arrow-end': 'block'
            });
        }
        document.getElementById('run').addEventListener('click', draw);
        draw();
    </script>
</body>
</html>
`
