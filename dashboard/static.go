package dashboard

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Arena relay</title>
<style>
body { font-family: ui-monospace, Menlo, monospace; background: #0b0f14; color: #d1d5db; margin: 2rem; }
h1 { font-size: 1.1rem; }
.ok { color: #22c55e; } .down { color: #ef4444; }
table { border-collapse: collapse; margin-top: 1rem; }
td, th { padding: 0.25rem 0.75rem; border-bottom: 1px solid #1f2937; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
<h1>Arena relay <span id="conn" class="down">disconnected</span></h1>
<div>engine: <span id="engine">-</span> &middot; updated: <span id="updated">-</span></div>
<table>
<thead><tr><th>strategy</th><th>value</th><th>return %</th><th>trades</th></tr></thead>
<tbody id="board"></tbody>
</table>
<script>
(function () {
  var attempts = 0;
  function text(id, v) { document.getElementById(id).textContent = v; }
  function render(msg) {
    var d = msg.data || {};
    text("engine", d.engineStatus || d.engine_status || (d.system_status && d.system_status.status) || "Unknown");
    text("updated", new Date(msg.timestamp).toLocaleTimeString());
    var rows = d.leaderboard || d.strategy_performance || [];
    var body = document.getElementById("board");
    body.innerHTML = "";
    rows.forEach(function (r) {
      var tr = document.createElement("tr");
      [r.strategyId || r.strategy_id || (r.agent + "_" + r.strategy),
       Number(r.total_value || r.accountValue || 0).toFixed(2),
       Number(r.return_pct || r.percentReturn || 0).toFixed(2),
       r.trades || r.total_trades || 0].forEach(function (v) {
        var td = document.createElement("td");
        td.textContent = v;
        tr.appendChild(td);
      });
      body.appendChild(tr);
    });
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function () { attempts = 0; text("conn", "connected"); document.getElementById("conn").className = "ok"; };
    ws.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.type === "state" && msg.data) { render(msg); }
    };
    ws.onclose = function () {
      text("conn", "disconnected");
      document.getElementById("conn").className = "down";
      if (attempts < 5) {
        setTimeout(connect, Math.min(1000 * Math.pow(2, attempts), 30000));
        attempts++;
      }
    };
  }
  connect();
})();
</script>
</body>
</html>
`
