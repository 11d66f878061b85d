package dashboard

const controlHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>xmarks</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: #1e293b; padding: 1.25rem 2rem; border-bottom: 1px solid #334155; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.25rem; color: #38bdf8; }
        .status { padding: 0.4rem 1rem; border-radius: 9999px; font-size: 0.8rem; font-weight: 600; }
        .status.running { background: #166534; color: #4ade80; }
        .status.idle { background: #854d0e; color: #fde047; }
        .controls { display: flex; flex-wrap: wrap; gap: 0.75rem; padding: 1.5rem 2rem 0; }
        button { background: #1d9bf0; color: #fff; border: 0; border-radius: 9999px; padding: 0.6rem 1.2rem; font-weight: 600; cursor: pointer; }
        button.secondary { background: #334155; }
        button.danger { background: #b91c1c; }
        #message { padding: 1rem 2rem 0; color: #94a3b8; min-height: 2.5rem; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; padding: 1.5rem 2rem; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.25rem; }
        .card .label { font-size: 0.7rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; margin-bottom: 0.4rem; }
        .card .value { font-size: 1.75rem; font-weight: 700; }
        .card.accent { border-color: #38bdf8; }
        .card.accent .value { color: #38bdf8; }
    </style>
</head>
<body>
    <div class="header">
        <h1>X Bookmarks</h1>
        <span class="status idle" id="state">idle</span>
    </div>
    <div class="controls">
        <button onclick="post('/api/scan')">Scan visible</button>
        <button onclick="post('/api/scroll')">Auto-scroll</button>
        <button class="secondary" onclick="post('/api/stop')">Stop</button>
        <button class="secondary" onclick="download('json')">Export JSON</button>
        <button class="secondary" onclick="download('csv')">Export CSV</button>
        <button class="danger" onclick="post('/api/bookmarks', 'DELETE')">Clear</button>
    </div>
    <div id="message"></div>
    <div class="grid">
        <div class="card accent"><div class="label">Bookmarks</div><div class="value" id="collected">0</div></div>
        <div class="card"><div class="label">Posts Scraped</div><div class="value" id="posts_scraped">0</div></div>
        <div class="card"><div class="label">Items Skipped</div><div class="value" id="items_skipped">0</div></div>
        <div class="card"><div class="label">Scroll Iterations</div><div class="value" id="scroll_iterations">0</div></div>
        <div class="card"><div class="label">Exports</div><div class="value" id="exports_written">0</div></div>
    </div>
    <script>
        const msg = t => document.getElementById('message').textContent = t;
        async function post(path, method) {
            const r = await fetch(path, { method: method || 'POST' });
            const d = await r.json();
            msg(d.error || JSON.stringify(d));
            refresh();
        }
        async function download(format) {
            const r = await fetch('/api/export?format=' + format, { method: 'POST' });
            if (!r.ok) { msg((await r.json()).error); return; }
            const name = (r.headers.get('Content-Disposition') || '').split('filename=')[1] || ('export.' + format);
            const a = document.createElement('a');
            a.href = URL.createObjectURL(await r.blob());
            a.download = name.replace(/"/g, '');
            a.click();
            URL.revokeObjectURL(a.href);
            msg('Exported ' + r.headers.get('X-Export-Count') + ' bookmarks');
            refresh();
        }
        function render(s, d) {
            const st = document.getElementById('state');
            st.textContent = s.state;
            st.className = 'status ' + s.state;
            document.getElementById('collected').textContent = Number(s.collected).toLocaleString();
            ['posts_scraped','items_skipped','scroll_iterations','exports_written'].forEach(k => {
                const el = document.getElementById(k);
                if (el && d && d[k] !== undefined) el.textContent = Number(d[k]).toLocaleString();
            });
        }
        async function refresh() {
            try {
                const s = await (await fetch('/api/status')).json();
                const d = await (await fetch('/api/stats')).json();
                render(s, d);
            } catch (e) {}
        }
        let poller = null;
        function live() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/ws');
            ws.onopen = () => { if (poller) { clearInterval(poller); poller = null; } };
            ws.onmessage = e => { const s = JSON.parse(e.data); render(s, s.stats); };
            ws.onclose = () => {
                if (!poller) poller = setInterval(refresh, 2000);
                setTimeout(live, 5000);
            };
        }
        refresh();
        live();
    </script>
</body>
</html>`
