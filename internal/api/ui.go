package api

import (
	"net/http"
)

const testConsoleHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sentient Studio - Test Console</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: monospace;
            background: #1a1a2e;
            color: #eee;
            height: 100vh;
            display: flex;
            flex-direction: column;
        }
        header {
            background: #16213e;
            padding: 12px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        header h1 { font-size: 16px; font-weight: normal; }
        #status { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #status.connected { background: #1b4332; color: #95d5b2; }
        #status.disconnected { background: #7f1d1d; color: #fca5a5; }
        #status.connecting { background: #78350f; color: #fcd34d; }
        .controls {
            background: #16213e;
            padding: 10px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            gap: 10px;
            align-items: center;
        }
        .controls label { font-size: 12px; color: #9ca3af; }
        .controls input {
            background: #1a1a2e;
            border: 1px solid #0f3460;
            border-radius: 4px;
            padding: 6px 10px;
            color: #eee;
            font-family: monospace;
            font-size: 12px;
            width: 300px;
        }
        .controls button {
            background: #2563eb;
            border: none;
            border-radius: 4px;
            padding: 6px 12px;
            color: #fff;
            font-family: monospace;
            font-size: 12px;
            cursor: pointer;
        }
        .controls button.run { background: #059669; }
        .controls button:disabled { background: #374151; cursor: not-allowed; }
        #result { font-size: 12px; padding: 4px 10px; border-radius: 4px; }
        #result.passed { background: #1b4332; color: #95d5b2; }
        #result.failed { background: #7f1d1d; color: #fca5a5; }
        main { flex: 1; overflow-y: auto; padding: 10px; }
        .event {
            padding: 8px 12px;
            margin-bottom: 4px;
            background: #16213e;
            border-radius: 4px;
            border-left: 3px solid #0f3460;
            font-size: 13px;
            display: flex;
            gap: 12px;
            align-items: baseline;
        }
        .event.level-error { border-left-color: #dc2626; background: #1f1515; }
        .event.level-warn { border-left-color: #d97706; }
        .event.scope-scenario { border-left-color: #7c3aed; }
        .event.scope-testrun { border-left-color: #059669; }
        .event.scope-codegen { border-left-color: #0891b2; }
        .event.scope-bug { border-left-color: #db2777; }
        .ts { color: #6b7280; font-size: 11px; min-width: 90px; }
        .name { color: #60a5fa; font-weight: bold; min-width: 160px; }
        .id { color: #a78bfa; }
        .msg { color: #9ca3af; }
        footer {
            background: #16213e;
            padding: 8px 20px;
            border-top: 1px solid #0f3460;
            font-size: 11px;
            color: #6b7280;
        }
    </style>
</head>
<body>
    <header>
        <h1>Sentient Studio - Test Console</h1>
        <span id="status" class="disconnected">Disconnected</span>
    </header>
    <div class="controls">
        <label>Test run:</label>
        <input type="text" id="runId" placeholder="testrun id (empty = all events)">
        <button id="watchBtn" onclick="watch()">Watch</button>
        <button id="runBtn" class="run" onclick="execute()">Execute</button>
        <span id="result"></span>
    </div>
    <main id="events"></main>
    <footer><span id="count">0</span> events | WebSocket: <span id="endpoint">/ws/events</span></footer>

    <script>
        const eventsDiv = document.getElementById('events');
        const statusEl = document.getElementById('status');
        const countEl = document.getElementById('count');
        const runInput = document.getElementById('runId');
        const resultEl = document.getElementById('result');
        let ws = null;
        let count = 0;
        let filter = '';
        let reconnectTimer = null;

        function text(cls, s) {
            const span = document.createElement('span');
            span.className = cls;
            span.textContent = s;
            return span;
        }

        function render(e) {
            const div = document.createElement('div');
            div.className = 'event level-' + e.level + ' scope-' + e.event.split('.')[0];
            div.appendChild(text('ts', new Date(e.ts).toLocaleTimeString('en-US', { hour12: false })));
            div.appendChild(text('name', e.event));
            const f = e.fields || {};
            const id = f.state_id || f.node_id || f.testrun_id || f.scenario_id || f.device_id || '';
            if (id) div.appendChild(text('id', id));
            if (e.msg) div.appendChild(text('msg', e.msg));
            eventsDiv.appendChild(div);
            countEl.textContent = ++count;
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
            while (eventsDiv.children.length > 500) eventsDiv.removeChild(eventsDiv.firstChild);
        }

        function setStatus(s) {
            statusEl.className = s;
            statusEl.textContent = s.charAt(0).toUpperCase() + s.slice(1);
        }

        function connect() {
            setStatus('connecting');
            let path = '/ws/events';
            if (filter) path += '?testrun_id=' + encodeURIComponent(filter);
            document.getElementById('endpoint').textContent = path;
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            ws = new WebSocket(proto + '//' + location.host + path);
            ws.onopen = function() { setStatus('connected'); };
            ws.onmessage = function(m) {
                try { render(JSON.parse(m.data)); } catch (err) { console.error(err); }
            };
            ws.onclose = function() {
                setStatus('disconnected');
                if (!reconnectTimer) {
                    reconnectTimer = setTimeout(function() { reconnectTimer = null; connect(); }, 3000);
                }
            };
        }

        function watch() {
            filter = runInput.value.trim();
            eventsDiv.innerHTML = '';
            count = 0;
            if (ws) { ws.onclose = null; ws.close(); }
            connect();
        }

        function execute() {
            const id = runInput.value.trim();
            if (!id) return;
            const btn = document.getElementById('runBtn');
            btn.disabled = true;
            fetch('/testruns/' + encodeURIComponent(id) + '/execute', { method: 'POST' })
                .then(function(res) { return res.json(); })
                .then(function(data) {
                    btn.disabled = false;
                    resultEl.className = data.passed ? 'passed' : 'failed';
                    resultEl.textContent = data.message || data.error || '';
                })
                .catch(function() {
                    btn.disabled = false;
                    resultEl.className = 'failed';
                    resultEl.textContent = 'Network error';
                });
        }

        runInput.addEventListener('keypress', function(e) { if (e.key === 'Enter') watch(); });
        connect();
    </script>
</body>
</html>`

// uiHandler serves the test console page.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(testConsoleHTML))
}
