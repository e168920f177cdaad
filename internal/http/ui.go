package http

import nethttp "net/http"

func dashboardHandler(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.URL.Path != "/" {
		nethttp.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(nethttp.StatusOK)
	_, _ = w.Write([]byte(dashboardHTML))
}

func faviconHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusNoContent)
}

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>VBOA HMI - General view of alerts</title>
  <script src="https://unpkg.com/vis-timeline@7.7.3/standalone/umd/vis-timeline-graph2d.min.js"></script>
  <script src="https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"></script>
  <style>
    :root {
      --bg: #f7f7f7;
      --paper: #fff;
      --text: #333;
      --muted: #777;
      --line: #ddd;
      --accent: #0e5d8f;
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      background: var(--bg);
      color: var(--text);
      font-family: "Open Sans", "Helvetica Neue", Helvetica, Arial, sans-serif;
      font-size: 14px;
    }

    header {
      background: var(--accent);
      color: #fff;
      padding: 12px 20px;
      font-size: 18px;
      font-weight: 600;
    }

    main { padding: 16px 20px; }

    form.filters {
      display: flex;
      flex-wrap: wrap;
      gap: 12px;
      align-items: flex-end;
      background: var(--paper);
      border: 1px solid var(--line);
      padding: 12px;
      margin-bottom: 16px;
    }

    form.filters label { display: flex; flex-direction: column; color: var(--muted); font-size: 12px; }

    .panel {
      background: var(--paper);
      border: 1px solid var(--line);
      padding: 12px;
      margin-bottom: 16px;
    }

    .charts { display: flex; flex-wrap: wrap; gap: 16px; }

    #status { color: var(--muted); font-size: 12px; }

    .vis-item.fill-border-red { border-color: #a94442; background-color: #f2dede; }
    .vis-item.fill-border-orange { border-color: #e08e0b; background-color: #fcf8e3; }
    .vis-item.fill-border-yellow { border-color: #c7b700; background-color: #ffffe0; }
  </style>
</head>
<body>
  <header>General view of alerts</header>
  <main>
    <form class="filters" id="filters">
      <label>Start <input type="datetime-local" name="start" /></label>
      <label>Stop <input type="datetime-local" name="stop" /></label>
      <label>Window size (days) <input type="number" step="0.05" min="0" name="window_size" /></label>
      <label>Entities
        <select name="entity" multiple size="3">
          <option value="SOURCE">Sources</option>
          <option value="EVENT">Events</option>
          <option value="ANNOTATION">Annotations</option>
          <option value="REPORT">Reports</option>
          <option value="EXPLICIT_REF">Explicit references</option>
        </select>
      </label>
      <label>Sliding view <input type="text" name="view" placeholder="saved view name" /></label>
      <button type="submit">Query</button>
    </form>
    <div id="status"></div>
    <div class="panel"><div id="timeline"></div></div>
    <div class="panel charts">
      <div id="chart-severity"></div>
      <div id="chart-entity"></div>
    </div>
  </main>
  <script>
    (function () {
      var timeline = null;
      var refresh = null;

      function params(form) {
        var p = new URLSearchParams();
        var data = new FormData(form);
        data.forEach(function (value, key) {
          if (value === "") { return; }
          if (key === "start" || key === "stop") { value = value + ":00Z"; }
          p.append(key, value);
        });
        return p;
      }

      function render(payload) {
        var container = document.getElementById("timeline");
        var items = new vis.DataSet(payload.items);
        var groups = new vis.DataSet(payload.groups);
        if (timeline) { timeline.destroy(); }
        timeline = new vis.Timeline(container, items, groups, {
          groupOrder: function () { return 0; },
          stack: false,
          tooltip: { followMouse: true }
        });
        items.forEach(function (item) { item.title = item.tooltip; items.update(item); });
      }

      function loadCharts(p) {
        ["severity", "entity"].forEach(function (by) {
          var q = new URLSearchParams(p);
          q.set("by", by);
          fetch("/api/v1/charts/alerts?" + q.toString())
            .then(function (r) { return r.text(); })
            .then(function (html) {
              var el = document.getElementById("chart-" + by);
              el.innerHTML = html;
              el.querySelectorAll("script").forEach(function (s) { eval(s.textContent); });
            });
        });
      }

      function load() {
        var form = document.getElementById("filters");
        var p = params(form);
        var url = p.has("view") ? "/api/v1/alerts/sliding?" : "/api/v1/alerts/timeline?";
        var status = document.getElementById("status");
        status.textContent = "Loading...";
        fetch(url + p.toString())
          .then(function (r) { return r.json().then(function (body) { return { ok: r.ok, body: body }; }); })
          .then(function (res) {
            if (!res.ok) { status.textContent = res.body.error || "request failed"; return; }
            var meta = res.body.meta;
            status.textContent = meta.count + " alerts between " + meta.start + " and " + meta.stop;
            render(res.body.data);
            loadCharts(p);
            if (refresh) { clearTimeout(refresh); refresh = null; }
            if (meta.sliding_window && meta.sliding_window.repeat_cycle_sec > 0) {
              refresh = setTimeout(load, meta.sliding_window.repeat_cycle_sec * 1000);
            }
          })
          .catch(function (err) { status.textContent = String(err); });
      }

      document.getElementById("filters").addEventListener("submit", function (e) {
        e.preventDefault();
        load();
      });
      load();
    })();
  </script>
</body>
</html>
`
