package viz

import (
	"bytes"
	"fmt"
	"html/template"
)

// compiledTemplate is parsed at init time to fail fast on template errors.
var compiledTemplate *template.Template

func init() {
	compiledTemplate = template.Must(template.New("viz").Parse(htmlTemplate))
}

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	Layout string // "force", "circle", "grid" or "breadthfirst"
	Title  string // Page title
}

// DefaultOptions returns default HTML generation options.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{
		Layout: "force",
		Title:  "Citation Network",
	}
}

// ValidLayouts lists the supported layout algorithm names.
var ValidLayouts = []string{"force", "circle", "grid", "breadthfirst"}

// GenerateHTML generates a self-contained HTML page for the graph, with a
// sidebar listing every document.
func GenerateHTML(graph *GraphData, opts HTMLOptions) (string, error) {
	if graph == nil {
		return "", fmt.Errorf("graph cannot be nil")
	}

	if err := validateLayout(opts.Layout); err != nil {
		return "", err
	}

	if opts.Title == "" {
		opts.Title = DefaultOptions().Title
	}

	if graph.IsEmpty() {
		return generateEmptyHTML(), nil
	}

	graphJSON, err := graph.ToCytoscapeJSON()
	if err != nil {
		return "", err
	}

	data := templateData{
		Title:     opts.Title,
		GraphJSON: template.JS(graphJSON),
		Layout:    layoutToCytoscape(opts.Layout),
		Nodes:     graph.Nodes,
	}

	var buf bytes.Buffer
	if err := compiledTemplate.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// validateLayout checks if the layout option is valid.
func validateLayout(layout string) error {
	switch layout {
	case "", "force", "circle", "grid", "breadthfirst":
		return nil
	default:
		return fmt.Errorf("invalid layout %q: must be force, circle, grid, or breadthfirst", layout)
	}
}

// templateData holds data for the HTML template.
type templateData struct {
	Title     string
	GraphJSON template.JS
	Layout    string
	Nodes     []Node
}

// layoutToCytoscape converts user-friendly layout names to Cytoscape.js layout algorithm names.
func layoutToCytoscape(layout string) string {
	switch layout {
	case "circle", "grid", "breadthfirst":
		return layout
	default:
		return "cose"
	}
}

// generateEmptyHTML returns HTML for an empty graph state.
func generateEmptyHTML() string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Citation Network - Empty</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      justify-content: center;
      align-items: center;
      height: 100vh;
      margin: 0;
      background: #f5f5f5;
    }
    .empty-state {
      text-align: center;
      color: #666;
    }
    .empty-state code {
      background: #e0e0e0;
      padding: 2px 6px;
      border-radius: 3px;
    }
  </style>
</head>
<body>
  <div class="empty-state">
    <h2>No graph data</h2>
    <p>The crawl did not produce any documents.</p>
    <p>Start one with <code>pnet crawl &lt;doi&gt;</code></p>
  </div>
</body>
</html>`
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <script src="https://unpkg.com/cytoscape@3/dist/cytoscape.min.js"></script>
  <style>
    * {
      box-sizing: border-box;
    }
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      padding: 0;
      display: flex;
      background: #f5f5f5;
    }
    #cy {
      flex: 1;
      height: 100vh;
      background: white;
    }
    #sidebar {
      width: 340px;
      height: 100vh;
      overflow-y: auto;
      border-left: 1px solid #ddd;
      padding: 12px;
      font-size: 13px;
    }
    #sidebar h2 {
      font-size: 15px;
      margin: 0 0 8px 0;
    }
    #sidebar ul {
      list-style: none;
      padding: 0;
      margin: 0;
    }
    #sidebar li {
      padding: 6px 4px;
      border-bottom: 1px solid #eee;
      cursor: pointer;
    }
    #sidebar li.seed {
      background: #fff3e0;
    }
    #sidebar li.selected {
      background: #e3f2fd;
    }
    #sidebar .label {
      font-weight: bold;
    }
    #sidebar .title {
      color: #555;
    }
    #tooltip {
      position: absolute;
      display: none;
      background: white;
      border: 1px solid #ccc;
      border-radius: 4px;
      padding: 8px 12px;
      box-shadow: 0 2px 8px rgba(0,0,0,0.15);
      max-width: 300px;
      font-size: 13px;
      z-index: 1000;
      pointer-events: none;
    }
    #tooltip .label {
      font-weight: bold;
      margin-bottom: 4px;
    }
    #tooltip .detail {
      color: #555;
      margin: 2px 0;
    }
  </style>
</head>
<body>
  <div id="cy"></div>
  <div id="sidebar">
    <h2>{{.Title}} ({{len .Nodes}} documents)</h2>
    <ul>
      {{- range .Nodes}}
      <li data-id="{{.ID}}"{{if .Seed}} class="seed"{{end}}>
        <div class="label">{{.Label}}</div>
        <div class="title">{{.Title}}</div>
        {{- if .URL}}
        <div><a href="{{.URL}}" target="_blank">{{.ID}}</a></div>
        {{- else}}
        <div>{{.ID}}</div>
        {{- end}}
      </li>
      {{- end}}
    </ul>
  </div>
  <div id="tooltip"></div>
  <script>
    (function() {
      const graphData = {{.GraphJSON}};
      const layout = "{{.Layout}}";

      const cy = cytoscape({
        container: document.getElementById('cy'),
        elements: graphData,
        style: [
          {
            selector: 'node',
            style: {
              'background-color': '#4A90D9',
              'label': 'data(label)',
              'color': '#333',
              'font-size': '10px',
              'text-valign': 'bottom',
              'text-margin-y': '5px',
              'width': 'mapData(connectionCount, 0, 20, 20, 50)',
              'height': 'mapData(connectionCount, 0, 20, 20, 50)'
            }
          },
          // Seed documents
          {
            selector: 'node[?seed]',
            style: {
              'background-color': '#E8923A',
              'shape': 'diamond',
              'font-weight': 'bold'
            }
          },
          {
            selector: 'edge',
            style: {
              'line-color': '#95A5A6',
              'target-arrow-color': '#95A5A6',
              'target-arrow-shape': 'triangle',
              'curve-style': 'bezier',
              'width': 1.5
            }
          },
          {
            selector: 'node.highlighted',
            style: {
              'border-width': 3,
              'border-color': '#ff6b6b'
            }
          },
          {
            selector: 'node.dimmed',
            style: {
              'opacity': 0.3
            }
          },
          {
            selector: 'edge.dimmed',
            style: {
              'opacity': 0.2
            }
          }
        ],
        layout: {
          name: layout,
          animate: false,
          nodeRepulsion: 8000,
          idealEdgeLength: 100,
          edgeElasticity: 100
        }
      });

      const tooltip = document.getElementById('tooltip');

      function showTooltip(evt, content) {
        tooltip.innerHTML = content;
        tooltip.style.display = 'block';
        const pos = evt.renderedPosition || evt.position;
        tooltip.style.left = (pos.x + 15) + 'px';
        tooltip.style.top = (pos.y + 15) + 'px';
      }

      function hideTooltip() {
        tooltip.style.display = 'none';
      }

      function getNodeTooltip(node) {
        const data = node.data();
        let html = '<div class="label">' + escapeHtml(data.label) + '</div>';
        if (data.title) html += '<div class="detail">' + escapeHtml(data.title) + '</div>';
        if (data.authors) html += '<div class="detail">Authors: ' + escapeHtml(data.authors) + '</div>';
        if (data.journal) html += '<div class="detail">' + escapeHtml(data.journal) + '</div>';
        if (data.roles) html += '<div class="detail">Found as: ' + escapeHtml(data.roles) + '</div>';
        return html;
      }

      function escapeHtml(str) {
        if (!str) return '';
        return String(str).replace(/&/g, '&amp;')
                  .replace(/</g, '&lt;')
                  .replace(/>/g, '&gt;')
                  .replace(/"/g, '&quot;');
      }

      function focus(node) {
        cy.elements().removeClass('highlighted dimmed');
        const neighborhood = node.neighborhood().add(node);
        neighborhood.addClass('highlighted');
        cy.elements().not(neighborhood).addClass('dimmed');

        document.querySelectorAll('#sidebar li').forEach(function(li) {
          li.classList.toggle('selected', li.dataset.id === node.id());
        });
      }

      cy.on('mouseover', 'node', function(evt) {
        showTooltip(evt, getNodeTooltip(evt.target));
      });

      cy.on('mouseout', 'node', function() {
        hideTooltip();
      });

      cy.on('tap', 'node', function(evt) {
        focus(evt.target);
        const li = document.querySelector('#sidebar li.selected');
        if (li) li.scrollIntoView({block: 'nearest'});
      });

      cy.on('tap', function(evt) {
        if (evt.target === cy) {
          cy.elements().removeClass('highlighted dimmed');
          document.querySelectorAll('#sidebar li').forEach(function(li) {
            li.classList.remove('selected');
          });
        }
      });

      document.querySelectorAll('#sidebar li').forEach(function(li) {
        li.addEventListener('click', function(evt) {
          if (evt.target.tagName === 'A') return;
          const node = cy.getElementById(li.dataset.id);
          if (node.nonempty()) {
            focus(node);
            cy.animate({center: {eles: node}, duration: 300});
          }
        });
      });
    })();
  </script>
</body>
</html>`
